package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/manifest"
)

// ChangesetDir is where generated changeset files live, relative to the
// repository root.
const ChangesetDir = ".changeset"

// preflightStep validates every precondition of a release before anything
// mutates. Failures are collected, not short-circuited, so the operator
// sees the full list in one run.
type preflightStep struct{}

func (s *preflightStep) Name() string { return StepPreflight }

func (s *preflightStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.preflight"
	env := rc.Env
	var fatal int

	fail := func(msg string, keyvals ...any) {
		env.Logger.Error(msg, keyvals...)
		fatal++
	}

	m, err := manifest.Read(env.Config.WorkDir)
	if err != nil {
		fail("package manifest is missing or unreadable", "err", err)
	} else {
		env.Logger.Info("releasing package", "name", m.Name, "current", m.Version)
		if m.Private {
			fail("package is marked private and cannot be published")
		}
	}

	if user, err := env.Registry.Whoami(ctx); err != nil {
		fail("registry authentication failed", "err", err)
	} else {
		env.Logger.Info("registry authenticated", "user", user)
	}

	if env.Host == nil {
		env.Logger.Warn("no release host configured, release creation will be skipped")
	} else if err := env.Host.AuthCheck(ctx); err != nil {
		env.Logger.Warn("release host authentication failed, release creation may fail", "err", err)
	}

	if clean, err := env.VC.IsClean(ctx); err != nil {
		fail("cannot inspect working tree", "err", err)
	} else if !clean {
		fail("working tree has uncommitted changes")
	}

	s.checkBranch(ctx, rc)

	lastTag, err := env.VC.LastTag(ctx)
	if err != nil {
		fail("cannot determine last release tag", "err", err)
	} else {
		commits, err := env.VC.CommitsSince(ctx, lastTag, recentCommitLimit)
		if err != nil {
			fail("cannot list commits since last release", "err", err)
		} else if len(commits) == 0 {
			fail("no commits since last release, nothing to release", "last_tag", lastTag)
		}
	}

	if _, err := os.Stat(filepath.Join(env.Config.WorkDir, ChangesetDir)); err != nil {
		env.Logger.Warn("changeset directory does not exist, it will be created",
			"dir", ChangesetDir)
	}

	if fatal > 0 {
		return sherrors.Preflight(op, fmt.Sprintf("%d preflight check(s) failed", fatal))
	}
	env.Logger.Info("preflight checks passed")
	return nil
}

// checkBranch warns (never fails) when the checked-out branch is not the
// configured or remote-detected release branch.
func (s *preflightStep) checkBranch(ctx context.Context, rc *RunContext) {
	env := rc.Env

	current, err := env.VC.CurrentBranch(ctx)
	if err != nil {
		env.Logger.Warn("cannot determine current branch", "err", err)
		return
	}

	want := env.Config.Branch
	if want == "" {
		want, err = env.VC.DefaultBranch(ctx)
		if err != nil || want == "" {
			return
		}
	}
	if current != want {
		env.Logger.Warn("not on the release branch", "current", current, "expected", want)
	}
}

// Verify always fails: preflight checks reality, so re-running is the
// only meaningful verification.
func (s *preflightStep) Verify(ctx context.Context, rc *RunContext) bool { return false }

// DryRun runs the real checks; preflight never mutates anything.
func (s *preflightStep) DryRun(ctx context.Context, rc *RunContext) error {
	return s.Run(ctx, rc)
}
