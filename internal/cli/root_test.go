package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/lock"
	"github.com/relicta-tech/shipway/internal/pipeline"
	"github.com/relicta-tech/shipway/internal/version"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(sherrors.Preflight("op", "3 preflight check(s) failed")))
	assert.Equal(t, 3, ExitCode(sherrors.Wrap(lock.ErrLockHeld, sherrors.KindLock, "op", "held by pid 42")))
	assert.Equal(t, 4, ExitCode(pipeline.ErrUnknownStep))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(sherrors.Step("op", "publish failed")))
}

func TestApplyReleaseFlags(t *testing.T) {
	cfg.Bump = version.BumpPatch
	cfg.Edit = true
	cfg.Yes = false

	bumpMajor = true
	skipEdit = true
	assumeYes = true
	defer func() {
		bumpMajor = false
		skipEdit = false
		assumeYes = false
	}()

	applyReleaseFlags()
	assert.Equal(t, version.BumpMajor, cfg.Bump)
	assert.False(t, cfg.Edit)
	assert.True(t, cfg.Yes)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["release"])
	assert.True(t, names["status"])
	assert.True(t, names["rollback"])
	assert.True(t, names["version"])
}
