package session

import "errors"

// ErrNoSession is returned by Store.Get when no session is persisted.
var ErrNoSession = errors.New("no session stored")

// Store persists the authenticated session across application restarts.
// The login coordinator and the logout action are the only writers; reads
// may happen from anywhere.
type Store interface {
	// Get returns the stored session, or ErrNoSession when nothing (or only a
	// partial record) is stored.
	Get() (*Session, error)

	// Set persists the session, replacing any previous one.
	Set(session *Session) error

	// Clear removes any stored session. Clearing an empty store is not an error.
	Clear() error
}
