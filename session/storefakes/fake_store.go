package storefakes

import (
	"sync"

	"github.com/hauswerk/go-admin-auth/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store for tests.
type FakeStore struct {
	mu      sync.RWMutex
	session *session.Session

	SetCalls   int
	ClearCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Get() (*session.Session, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if !fs.session.Valid() {
		return nil, session.ErrNoSession
	}
	copied := *fs.session
	return &copied, nil
}

func (fs *FakeStore) Set(s *session.Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	copied := *s
	fs.session = &copied
	fs.SetCalls++
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.session = nil
	fs.ClearCalls++
	return nil
}
