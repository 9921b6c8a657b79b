// Package pipeline implements the sequential release pipeline: an ordered
// registry of steps, a runner with crash-safe resume, and a verification
// layer that decides whether an already-completed step may be skipped.
package pipeline

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/relicta-tech/shipway/internal/config"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/state"
)

// Step names, in pipeline order.
const (
	StepPreflight       = "preflight"
	StepInit            = "init"
	StepShowCommits     = "show_commits"
	StepCreateChangeset = "create_changeset"
	StepEditChangeset   = "edit_changeset"
	StepBuild           = "build"
	StepVersion         = "version"
	StepGitCommit       = "git_commit"
	StepNpmPublish      = "npm_publish"
	StepGitPush         = "git_push"
	StepGHRelease       = "gh_release"
	StepCleanup         = "cleanup"
)

// Step is one named, ordered unit of the release pipeline. Steps are
// static descriptors, compiled in and immutable for the process lifetime.
type Step interface {
	// Name returns the unique step name.
	Name() string

	// Run executes the step's real action, mutating external systems and
	// the in-memory state as needed. The runner persists state after a
	// successful return.
	Run(ctx context.Context, rc *RunContext) error

	// Verify checks whether the step's recorded completion still matches
	// external reality. The runner consults it for steps already marked
	// done: true means skip, false means re-execute to repair drift.
	Verify(ctx context.Context, rc *RunContext) bool

	// DryRun logs the intended action without touching external systems,
	// writing placeholder values where downstream steps need them.
	DryRun(ctx context.Context, rc *RunContext) error
}

// Env bundles everything steps need: the run configuration, the state
// store, the four external-system ports, and the interaction hooks the
// CLI provides.
type Env struct {
	Config config.RunConfig
	Store  *state.Store

	VC       ports.VersionControl
	Registry ports.PackageRegistry
	// Host is nil when the repository has no recognizable release host;
	// the gh_release step then no-ops with a warning.
	Host    ports.ReleaseHost
	Builder ports.Builder

	Logger *log.Logger

	// Confirm asks the operator a yes/no question before irreversible
	// actions. A nil Confirm (non-interactive run) answers no unless
	// Config.Yes is set.
	Confirm func(prompt string) bool

	// Editor opens a file for interactive editing and blocks until the
	// operator is done.
	Editor func(path string) error
}

// RunContext carries the mutable release state through one step execution.
type RunContext struct {
	State *state.ReleaseState
	Env   *Env
}
