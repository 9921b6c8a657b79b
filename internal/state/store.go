package state

import (
	"os"
	"path/filepath"
	"sync"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/fileutil"
)

// MaxStateFileSize is the maximum allowed size for the state record (1MB).
// A release state is a handful of short lines; anything larger is corrupt.
const MaxStateFileSize = 1 << 20

// Store persists a ReleaseState to a single text record on disk.
// All writes are atomic (temp file + rename), so a crash mid-write never
// leaves a partially written record behind.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given file path, creating the
// parent directory if needed.
func NewStore(path string) (*Store, error) {
	const op = "state.NewStore"

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, sherrors.IOWrap(err, op, "failed to create state directory")
	}
	return &Store{path: path}, nil
}

// Path returns the location of the backing record.
func (st *Store) Path() string {
	return st.path
}

// Exists reports whether a state record is present on disk.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}

// Load reads the persisted state. A missing record is not an error: it
// decodes to a fresh, empty state, which is how a first run begins.
func (st *Store) Load() (*ReleaseState, error) {
	const op = "state.Load"

	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := fileutil.ReadFileLimited(st.path, MaxStateFileSize)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReleaseState{}, nil
		}
		return nil, sherrors.StateWrap(err, op, "failed to read state record")
	}
	return decode(data), nil
}

// Save writes the whole state record atomically.
func (st *Store) Save(s *ReleaseState) error {
	const op = "state.Save"

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := fileutil.AtomicWriteFile(st.path, s.encode(), 0600); err != nil {
		return sherrors.StateWrap(err, op, "failed to write state record")
	}
	return nil
}

// Get reads a single key from the persisted record. Missing records and
// missing keys both report absence rather than failing.
func (st *Store) Get(key string) (string, bool, error) {
	s, err := st.Load()
	if err != nil {
		return "", false, err
	}
	v, ok := s.Get(key)
	return v, ok, nil
}

// Set writes a single key with replace-or-append semantics: the record is
// rewritten so that at most one line per key survives.
func (st *Store) Set(key, value string) error {
	s, err := st.Load()
	if err != nil {
		return err
	}
	s.Set(key, value)
	return st.Save(s)
}

// Clear removes the backing record entirely. Clearing an absent record is
// a no-op.
func (st *Store) Clear() error {
	const op = "state.Clear"

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return sherrors.StateWrap(err, op, "failed to remove state record")
	}
	return nil
}
