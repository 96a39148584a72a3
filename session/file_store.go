package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore persists the session as a JSON file, the Go stand-in for the
// browser's durable client storage. Writes go through a temp file rename so
// a crash mid-write never leaves a torn session on disk.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a FileStore rooted at dataDir, creating the directory
// if necessary.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] MkdirAll")
	}
	return &FileStore{path: filepath.Join(dataDir, "session.json")}, nil
}

func (fs *FileStore) Get() (*Session, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, errors.Wrap(err, "[FileStore.Get] ReadFile")
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		// A corrupt file is indistinguishable from no session.
		return nil, ErrNoSession
	}
	if !s.Valid() {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (fs *FileStore) Set(session *Session) error {
	if !session.Valid() {
		return errors.New("[FileStore.Set] refusing to persist a partial session")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	b, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] Marshal")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Set] WriteFile")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "[FileStore.Set] Rename")
	}
	return nil
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] Remove")
	}
	return nil
}
