package devserver

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/hauswerk/go-admin-auth/apiclient"
	"github.com/hauswerk/go-admin-auth/session"
)

// TwoFactorMode selects the second factor configured for a user.
type TwoFactorMode string

const (
	ModeNone  TwoFactorMode = "none"
	ModeEmail TwoFactorMode = "email"
	ModePush  TwoFactorMode = "push"
)

const codeTTL = 10 * time.Minute

// UserRecord is a dev-server user with credentials and 2FA configuration.
type UserRecord struct {
	User         session.User
	PasswordHash string
	Mode         TwoFactorMode
}

type emailCode struct {
	code      string
	createdAt time.Time
}

type pushChallenge struct {
	email     string
	status    apiclient.ApprovalStatus
	createdAt time.Time
}

// Store holds the dev server's users and in-flight challenges in memory.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*UserRecord
	codes   map[string]emailCode
	pushes  map[string]*pushChallenge
	nowTime func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*UserRecord),
		codes:   make(map[string]emailCode),
		pushes:  make(map[string]*pushChallenge),
		nowTime: time.Now,
	}
}

// AddUser registers a user with a bcrypt-hashed password.
func (s *Store) AddUser(user session.User, password string, mode TwoFactorMode) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "[Store.AddUser] bcrypt")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Email] = &UserRecord{
		User:         user,
		PasswordHash: string(hash),
		Mode:         mode,
	}
	return nil
}

// Authenticate checks credentials and returns the matching user record.
func (s *Store) Authenticate(email, password string) (*UserRecord, bool) {
	s.mu.RLock()
	record, ok := s.users[email]
	s.mu.RUnlock()

	if !ok {
		// Burn comparable time so unknown emails are not distinguishable.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0123456789012345678901uWruVmPwZnl1sMkkMxm0AIG5n1lFj36"), []byte(password))
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return nil, false
	}
	return record, true
}

// Lookup returns the user record for an email.
func (s *Store) Lookup(email string) (*UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[email]
	return record, ok
}

// IssueCode generates, stores, and returns a 6-digit code for the email.
// Re-issuing replaces the previous code.
func (s *Store) IssueCode(email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", errors.Wrap(err, "[Store.IssueCode] rand")
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = emailCode{code: code, createdAt: s.nowTime()}
	return code, nil
}

// ConsumeCode verifies a code and invalidates it on success.
func (s *Store) ConsumeCode(email, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.codes[email]
	if !ok || stored.code != code {
		return false
	}
	if s.nowTime().Sub(stored.createdAt) > codeTTL {
		delete(s.codes, email)
		return false
	}
	delete(s.codes, email)
	return true
}

// CreatePush opens a pending push challenge and returns its request ID.
func (s *Store) CreatePush(email string) string {
	requestID := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes[requestID] = &pushChallenge{
		email:     email,
		status:    apiclient.ApprovalPending,
		createdAt: s.nowTime(),
	}
	return requestID
}

// PushStatus returns the status and subject of a push challenge.
func (s *Store) PushStatus(requestID string) (apiclient.ApprovalStatus, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.pushes[requestID]
	if !ok {
		return "", "", false
	}
	return challenge.status, challenge.email, true
}

// ResolvePush moves a pending push challenge to a terminal status. Already
// resolved challenges keep their first resolution.
func (s *Store) ResolvePush(requestID string, status apiclient.ApprovalStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.pushes[requestID]
	if !ok || challenge.status != apiclient.ApprovalPending {
		return false
	}
	challenge.status = status
	return true
}
