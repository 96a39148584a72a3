// Package devserver is an in-process stand-in for the platform's
// authentication API. It exists for local development and integration
// testing of the login flow; it is not the platform.
package devserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hauswerk/go-admin-auth/internal/config"
	"github.com/hauswerk/go-admin-auth/session"
)

const tokenTTL = time.Hour

// Server serves the four auth endpoints plus the admin endpoints used to
// resolve push challenges.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *Store
	sender CodeSender
	router chi.Router
}

// ServerOption modifies the Server.
type ServerOption func(*Server)

// WithStore replaces the default empty store.
func WithStore(store *Store) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithCodeSender replaces the code delivery mechanism.
func WithCodeSender(sender CodeSender) ServerOption {
	return func(s *Server) {
		s.sender = sender
	}
}

// New creates a dev server. In a DEV environment an empty store is seeded
// with demo users covering every two-factor mode.
func New(cfg *config.Config, log zerolog.Logger, options ...ServerOption) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.store == nil {
		s.store = NewStore()
		if cfg.IsDev() {
			if err := SeedDemoUsers(s.store); err != nil {
				return nil, errors.Wrap(err, "[devserver.New] seeding")
			}
		}
	}
	if s.sender == nil {
		s.sender = NewCodeSender(cfg.SMTP, log)
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/verify-2fa", s.handleVerifyCode)
	r.Post("/auth/check-2fa-status", s.handleCheckStatus)
	r.Post("/auth/resend-code", s.handleResendCode)

	r.Post("/admin/challenges/{requestID}/approve", s.handleResolve(true))
	r.Post("/admin/challenges/{requestID}/reject", s.handleResolve(false))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}

// issueToken signs a bearer JWT for the user.
func (s *Server) issueToken(user session.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", errors.Wrap(err, "[Server.issueToken] SignedString")
	}
	return signed, nil
}

// SeedDemoUsers loads one user per two-factor mode. Passwords follow the
// <name>123 convention and are for local development only.
func SeedDemoUsers(store *Store) error {
	demo := []struct {
		user     session.User
		password string
		mode     TwoFactorMode
	}{
		{
			user:     session.User{ID: "u-concierge", Email: "concierge@hauswerk.dev", FirstName: "Clara", LastName: "Fuchs", Role: "concierge", Verified: true},
			password: "concierge123",
			mode:     ModeNone,
		},
		{
			user:     session.User{ID: "u-manager", Email: "manager@hauswerk.dev", FirstName: "Milan", LastName: "Weber", Role: "manager", Verified: true, TwoFactorEnabled: true},
			password: "manager123",
			mode:     ModeEmail,
		},
		{
			user:     session.User{ID: "u-admin", Email: "admin@hauswerk.dev", FirstName: "Ada", LastName: "Hofmann", Role: "admin", Verified: true, TwoFactorEnabled: true},
			password: "admin123",
			mode:     ModePush,
		},
	}

	for _, d := range demo {
		if err := store.AddUser(d.user, d.password, d.mode); err != nil {
			return err
		}
	}
	return nil
}
