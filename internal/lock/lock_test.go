package lock

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := log.New(io.Discard)
	return NewManager(filepath.Join(t.TempDir(), ".shipway", "lock"), logger)
}

func TestAcquireAndRelease(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	release, err := m.Acquire()
	require.NoError(t, err)

	data, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
	assert.True(t, m.Held())

	release()
	_, err = os.Stat(m.Path())
	assert.True(t, os.IsNotExist(err))
	assert.False(t, m.Held())
}

func TestAcquireFailsWhenOwnerAlive(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	// This test process itself plays the live owner.
	require.NoError(t, os.MkdirAll(filepath.Dir(m.Path()), 0700))
	require.NoError(t, os.WriteFile(m.Path(), []byte(strconv.Itoa(os.Getpid())+"\n"), 0600))

	m2 := NewManager(m.Path(), log.New(io.Discard))
	_, err := m2.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld) || strings.Contains(err.Error(), "this process"))
}

func TestStaleLockReclaimed(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	// Very large pids are outside the default pid_max; no such process runs.
	require.NoError(t, os.MkdirAll(filepath.Dir(m.Path()), 0700))
	require.NoError(t, os.WriteFile(m.Path(), []byte("999999999\n"), 0600))

	release, err := m.Acquire()
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestGarbageLockTreatedAsStale(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(m.Path()), 0700))
	require.NoError(t, os.WriteFile(m.Path(), []byte("not-a-pid\n"), 0600))

	release, err := m.Acquire()
	require.NoError(t, err)
	release()
}

func TestReleaseTolerantOfMissingFile(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	release, err := m.Acquire()
	require.NoError(t, err)

	require.NoError(t, os.Remove(m.Path()))
	release() // must not panic or log fatally
}
