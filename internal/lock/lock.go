// Package lock enforces at most one live orchestrator per repository
// checkout via an advisory pid file.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/fileutil"
)

// ErrLockHeld is returned when another live orchestrator owns the lock.
var ErrLockHeld = sherrors.New(sherrors.KindLock, "another release is already in progress")

// Manager guards a single working directory with a pid lock file.
// The lock is advisory and host-local: it only coordinates cooperating
// shipway processes on this machine.
type Manager struct {
	path   string
	logger *log.Logger
}

// NewManager creates a lock manager for the given lock file path.
func NewManager(path string, logger *log.Logger) *Manager {
	return &Manager{path: path, logger: logger}
}

// Path returns the location of the lock record.
func (m *Manager) Path() string {
	return m.path
}

// Acquire takes the lock for the current process. If the lock file exists
// and its recorded owner is still alive, Acquire fails with ErrLockHeld.
// A lock left behind by a dead process is reclaimed with a warning.
//
// The returned release func must be invoked on every exit path; callers
// defer it immediately and the signal handler in cmd guarantees it runs on
// interrupt as well. Release never fails loudly: at worst the next acquirer
// reclaims a stale file.
func (m *Manager) Acquire() (release func(), err error) {
	const op = "lock.Acquire"

	if owner, ok := m.currentOwner(); ok {
		if owner == os.Getpid() {
			return nil, sherrors.Lock(op, fmt.Sprintf("lock already held by this process (pid %d)", owner))
		}
		if processAlive(owner) {
			return nil, sherrors.Wrapf(ErrLockHeld, sherrors.KindLock, op, "lock held by running process %d", owner)
		}
		m.logger.Warn("reclaiming stale lock", "path", m.path, "dead_pid", owner)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return nil, sherrors.IOWrap(err, op, "failed to create lock directory")
	}

	pid := os.Getpid()
	if err := fileutil.AtomicWriteFile(m.path, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return nil, sherrors.IOWrap(err, op, "failed to write lock file")
	}

	return func() {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove lock file", "path", m.path, "error", err)
		}
	}, nil
}

// Held reports whether a live process currently owns the lock.
func (m *Manager) Held() bool {
	owner, ok := m.currentOwner()
	return ok && processAlive(owner)
}

// currentOwner reads the pid recorded in the lock file.
func (m *Manager) currentOwner() (int, bool) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable owner: treat as stale so the next acquirer reclaims it.
		return 0, false
	}
	return pid, true
}
