// Package login orchestrates the administrative sign-in flow: credential
// submission, the branch into direct session creation versus a two-factor
// challenge, and the resolution of that challenge by emailed code or by
// push approval.
package login

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hauswerk/go-admin-auth/apiclient"
	"github.com/hauswerk/go-admin-auth/session"
	"github.com/hauswerk/go-admin-auth/twofactor"
)

// API is the slice of the platform client the coordinator drives.
type API interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResponse, error)
	VerifyCode(ctx context.Context, email, code string) (*apiclient.VerifyCodeResponse, error)
	CheckApprovalStatus(ctx context.Context, email, requestID string) (*apiclient.StatusResponse, error)
	ResendCode(ctx context.Context, email string) (*apiclient.ResendResponse, error)
}

// Result is the answer to a credential submission: either a full session, or
// a challenge that must be resolved first. For push challenges the approval
// poller is already running; resolve it with AwaitApproval.
type Result struct {
	Session   *session.Session
	Challenge *twofactor.Challenge
}

// Coordinator drives the login flow and owns the two-factor state. All
// session writes go through it (and Logout); nothing else touches the store.
type Coordinator struct {
	api      API
	store    session.Store
	poller   *twofactor.Poller
	throttle *twofactor.ResendThrottle
	validate *validator.Validate
	log      zerolog.Logger
	nowTime  func() time.Time

	mu     sync.Mutex
	state  twofactor.State
	handle *twofactor.Handle
}

// CoordinatorOption modifies the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithPoller replaces the default approval poller.
func WithPoller(p *twofactor.Poller) CoordinatorOption {
	return func(c *Coordinator) {
		c.poller = p
	}
}

// WithThrottle replaces the default 60 second resend throttle.
func WithThrottle(t *twofactor.ResendThrottle) CoordinatorOption {
	return func(c *Coordinator) {
		c.throttle = t
	}
}

// WithNowTime sets the clock function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// NewCoordinator creates a Coordinator with required dependencies.
func NewCoordinator(api API, store session.Store, options ...CoordinatorOption) (*Coordinator, error) {
	if api == nil {
		return nil, errors.New("[NewCoordinator] api is required")
	}
	if store == nil {
		return nil, errors.New("[NewCoordinator] session store is required")
	}

	c := &Coordinator{
		api:      api,
		store:    store,
		throttle: twofactor.NewResendThrottle(),
		validate: validator.New(),
		log:      zerolog.Nop(),
		nowTime:  time.Now,
		state:    twofactor.State{Phase: twofactor.PhaseNone},
	}
	for _, opt := range options {
		opt(c)
	}

	if c.poller == nil {
		poller, err := twofactor.NewPoller(api, twofactor.WithPollerLogger(c.log))
		if err != nil {
			return nil, errors.Wrap(err, "[NewCoordinator] default poller")
		}
		c.poller = poller
	}
	return c, nil
}

// Restore loads a previously persisted session at application startup.
// Sessions whose JWT bearer token has expired are cleared rather than
// returned.
func (c *Coordinator) Restore() (*session.Session, error) {
	s, err := c.store.Get()
	if err != nil {
		return nil, err
	}
	if s.TokenExpired(c.nowTime()) {
		c.log.Info().Str("user", s.User.Email).Msg("stored session expired, clearing")
		if err := c.store.Clear(); err != nil {
			return nil, errors.Wrap(err, "[Coordinator.Restore] Clear")
		}
		return nil, session.ErrNoSession
	}
	return s, nil
}

// SubmitCredentials sends the credentials and branches on the server's
// answer. Starting a new attempt discards any challenge still in flight.
// Nothing is persisted unless the response carries a complete session.
func (c *Coordinator) SubmitCredentials(ctx context.Context, email, password string) (*Result, error) {
	if err := c.validate.Var(email, "required,email"); err != nil {
		return nil, errors.Wrap(ErrValidation, "email address is not valid")
	}
	if password == "" {
		return nil, errors.Wrap(ErrValidation, "password is required")
	}

	c.cancelChallenge()

	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		return nil, loginFailed(err)
	}

	if resp.Authenticated() {
		s, err := c.createSession(resp.AccessToken, resp.User)
		if err != nil {
			return nil, err
		}
		c.log.Info().Str("user", email).Msg("authenticated directly")
		return &Result{Session: s}, nil
	}

	if !resp.RequiresTwoFactor {
		// Neither a session nor a second-factor demand: malformed answer.
		return nil, loginFailed(errors.New("response carried neither session nor challenge"))
	}

	challenge := twofactor.Challenge{
		Email:     email,
		CreatedAt: c.nowTime(),
		Status:    twofactor.StatusPending,
		Kind:      twofactor.KindEmailCode,
	}
	if resp.UsePushNotification {
		challenge.Kind = twofactor.KindPushApproval
		challenge.RequestID = resp.RequestID
	}

	c.mu.Lock()
	c.state = twofactor.Reduce(c.state, twofactor.EventChallengeIssued{Challenge: challenge})
	if challenge.Kind == twofactor.KindPushApproval {
		c.handle = c.poller.Start(ctx, challenge.Email, challenge.RequestID)
	}
	c.mu.Unlock()

	c.log.Info().
		Str("user", email).
		Str("kind", string(challenge.Kind)).
		Msg("second factor required")

	return &Result{Challenge: &challenge}, nil
}

// SubmitCode verifies an emailed 6-digit code. Malformed codes are rejected
// locally without a network call; a server-side rejection leaves the
// challenge pending so the user may retry.
func (c *Coordinator) SubmitCode(ctx context.Context, code string) (*session.Session, error) {
	challenge, err := c.currentChallenge(twofactor.PhaseAwaitingCode)
	if err != nil {
		return nil, err
	}

	if err := c.validate.Var(code, "required,len=6,numeric"); err != nil {
		return nil, errors.Wrap(ErrValidation, "code must be exactly 6 digits")
	}

	resp, err := c.api.VerifyCode(ctx, challenge.Email, code)
	if err != nil {
		// Challenge stays pending; surface the server's message verbatim.
		c.resolve(twofactor.EventCodeRejected{})
		return nil, errors.Wrap(err, "[Coordinator.SubmitCode]")
	}

	s, err := c.createSession(resp.AccessToken, resp.User)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state = twofactor.Reduce(c.state, twofactor.EventCodeVerified{})
	c.mu.Unlock()

	c.log.Info().Str("user", challenge.Email).Msg("code verified")
	return s, nil
}

// AwaitApproval blocks until the running push challenge resolves, then
// completes the login. Approval alone carries no credentials: a follow-up
// status call fetches the token and user before the session is created.
func (c *Coordinator) AwaitApproval(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	handle := c.handle
	challenge := c.state.Challenge
	c.mu.Unlock()

	if handle == nil || challenge == nil || challenge.Kind != twofactor.KindPushApproval {
		return nil, ErrNoChallenge
	}

	select {
	case <-ctx.Done():
		c.Cancel()
		return nil, ErrApprovalCancelled

	case outcome, ok := <-handle.Outcome():
		if !ok {
			c.resolve(twofactor.EventCancelled{})
			return nil, ErrApprovalCancelled
		}

		switch outcome {
		case twofactor.OutcomeApproved:
			resp, err := c.api.CheckApprovalStatus(ctx, challenge.Email, challenge.RequestID)
			if err != nil {
				c.resolve(twofactor.EventCancelled{})
				return nil, loginFailed(err)
			}
			s, err := c.createSession(resp.AccessToken, resp.User)
			if err != nil {
				c.resolve(twofactor.EventCancelled{})
				return nil, err
			}
			c.resolve(twofactor.EventApprovalGranted{})
			c.log.Info().Str("user", challenge.Email).Msg("push approval granted")
			return s, nil

		case twofactor.OutcomeRejected:
			c.resolve(twofactor.EventApprovalRejected{})
			return nil, ErrApprovalRejected

		case twofactor.OutcomeTimedOut:
			c.resolve(twofactor.EventApprovalTimedOut{})
			return nil, ErrApprovalTimedOut

		default:
			c.resolve(twofactor.EventCancelled{})
			return nil, ErrApprovalUnavailable
		}
	}
}

// ResendCode asks the server for a fresh code. Available only while awaiting
// a code, and rate-limited client-side by the 60 second countdown.
func (c *Coordinator) ResendCode(ctx context.Context) (string, error) {
	challenge, err := c.currentChallenge(twofactor.PhaseAwaitingCode)
	if err != nil {
		return "", err
	}

	if !c.throttle.Trigger() {
		return "", ErrResendThrottled
	}

	resp, err := c.api.ResendCode(ctx, challenge.Email)
	if err != nil {
		return "", errors.Wrap(err, "[Coordinator.ResendCode]")
	}
	return resp.Message, nil
}

// ResendRemaining returns the time left on the resend countdown. The value
// is decorative; Trigger remains the authority.
func (c *Coordinator) ResendRemaining() time.Duration {
	return c.throttle.Remaining()
}

// Cancel abandons the challenge in flight, stopping the poller if one is
// attached. Safe to call at any time, any number of times.
func (c *Coordinator) Cancel() {
	c.cancelChallenge()
}

// State returns a snapshot of the two-factor flow state for rendering.
func (c *Coordinator) State() twofactor.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AcknowledgeRejectedNotice clears the one-shot rejected notice after the
// UI has displayed it.
func (c *Coordinator) AcknowledgeRejectedNotice() {
	c.resolve(twofactor.EventNoticeShown{})
}

// Logout destroys the session and any challenge in flight.
func (c *Coordinator) Logout() error {
	c.cancelChallenge()
	if err := c.store.Clear(); err != nil {
		return errors.Wrap(err, "[Coordinator.Logout] Clear")
	}
	c.log.Info().Msg("logged out")
	return nil
}

// HandleAuthFailure implements the cross-cutting session-expired policy: an
// authorization rejection from any authenticated platform call forces the
// session to be destroyed. It reports whether it acted.
func (c *Coordinator) HandleAuthFailure(err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	c.log.Warn().Msg("authorization rejected by platform, destroying session")
	if clearErr := c.store.Clear(); clearErr != nil {
		c.log.Error().Err(clearErr).Msg("failed clearing session store")
	}
	return true
}

func (c *Coordinator) createSession(token string, user *session.User) (*session.Session, error) {
	if token == "" || user == nil || user.ID == "" {
		return nil, loginFailed(errors.New("incomplete session in response"))
	}

	s := &session.Session{
		Token:     token,
		User:      *user,
		CreatedAt: c.nowTime(),
	}
	if err := c.store.Set(s); err != nil {
		return nil, errors.Wrap(err, "[Coordinator.createSession] Set")
	}
	return s, nil
}

func (c *Coordinator) currentChallenge(phase twofactor.Phase) (twofactor.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != phase || c.state.Challenge == nil {
		return twofactor.Challenge{}, ErrNoChallenge
	}
	return *c.state.Challenge, nil
}

func (c *Coordinator) resolve(event twofactor.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = twofactor.Reduce(c.state, event)
	if c.state.Phase == twofactor.PhaseNone {
		c.handle = nil
	}
}

func (c *Coordinator) cancelChallenge() {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.state = twofactor.Reduce(c.state, twofactor.EventCancelled{})
	c.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
}

// loginFailed folds any submission failure into the single login-failed
// signal, keeping the server's human-readable message when there is one.
func loginFailed(err error) error {
	if msg := apiclient.ServerMessage(err); msg != "" {
		return errors.Wrap(ErrLoginFailed, msg)
	}
	if errors.Is(err, apiclient.ErrTransport) {
		return errors.Wrap(ErrLoginFailed, "could not reach the platform")
	}
	return errors.Wrap(ErrLoginFailed, err.Error())
}
