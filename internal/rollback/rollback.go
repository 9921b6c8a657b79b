// Package rollback compensates a partially completed release. It walks the
// compensation chain newest-effect-first, undoing only what the interrupted
// run actually reached, and abandons the release attempt by clearing its
// persisted state.
package rollback

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/pipeline"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/state"
)

// Engine undoes the external effects of an interrupted release.
type Engine struct {
	registry *pipeline.Registry
	store    *state.Store
	vc       ports.VersionControl
	// host may be nil; release-object compensation is then skipped.
	host    ports.ReleaseHost
	workDir string
	logger  *log.Logger
}

// NewEngine creates a rollback engine.
func NewEngine(registry *pipeline.Registry, store *state.Store, vc ports.VersionControl,
	host ports.ReleaseHost, workDir string, logger *log.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		vc:       vc,
		host:     host,
		workDir:  workDir,
		logger:   logger,
	}
}

// Rollback reads the persisted state and applies the compensation chain for
// everything the run reached, newest effect first. Each compensation is
// best-effort: a failure is logged and the chain continues. The state
// record is cleared unconditionally at the end, abandoning the attempt.
func (e *Engine) Rollback(ctx context.Context) error {
	const op = "rollback.Rollback"

	st, err := e.store.Load()
	if err != nil {
		return err
	}
	if st.Empty() {
		e.logger.Info("no release in progress, nothing to roll back")
		return nil
	}

	if st.DryRun {
		e.logger.Info("state was recorded by a dry run, no external effects to undo")
		return e.store.Clear()
	}

	reached := e.registry.Index(st.LastStep)
	if reached < 0 {
		return sherrors.Newf(sherrors.KindState,
			"%s: state record names unknown step %q", op, st.LastStep)
	}
	e.logger.Info("rolling back release", "last_step", st.LastStep, "tag", st.Tag)

	if reached >= e.registry.Index(pipeline.StepGHRelease) {
		e.deleteRelease(ctx, st)
	}
	if reached >= e.registry.Index(pipeline.StepGitPush) {
		e.deleteRemoteTag(ctx, st)
	}
	if reached >= e.registry.Index(pipeline.StepNpmPublish) {
		e.logger.Warn("published packages cannot be unpublished automatically",
			"action", "run `npm unpublish "+st.Version+"` or deprecate the version manually")
	}
	if reached >= e.registry.Index(pipeline.StepVersion) {
		e.resetToOriginal(ctx, st)
	} else if reached >= e.registry.Index(pipeline.StepCreateChangeset) {
		e.deleteChangeset(st)
	}

	if err := e.store.Clear(); err != nil {
		return sherrors.StateWrap(err, op, "failed to clear release state")
	}
	e.logger.Info("rollback complete, release attempt abandoned")
	return nil
}

func (e *Engine) deleteRelease(ctx context.Context, st *state.ReleaseState) {
	if e.host == nil || st.Tag == "" {
		return
	}
	rel, err := e.host.GetRelease(ctx, st.Tag)
	if err != nil {
		e.logger.Warn("cannot look up release object", "tag", st.Tag, "err", err)
		return
	}
	if rel == nil {
		e.logger.Info("no release object found for tag", "tag", st.Tag)
		return
	}
	if err := e.host.DeleteRelease(ctx, rel.ID); err != nil {
		e.logger.Warn("failed to delete release object", "tag", st.Tag, "err", err)
		return
	}
	e.logger.Info("deleted release object", "tag", st.Tag)
}

func (e *Engine) deleteRemoteTag(ctx context.Context, st *state.ReleaseState) {
	if st.Tag == "" {
		return
	}
	if err := e.vc.DeleteRemoteTag(ctx, st.Tag); err != nil {
		e.logger.Warn("failed to delete remote tag", "tag", st.Tag, "err", err)
		return
	}
	e.logger.Info("deleted remote tag", "tag", st.Tag)
}

// resetToOriginal drops the local release tag and resets the branch to the
// snapshot recorded at init, which also removes the release commit and the
// changeset file it carried.
func (e *Engine) resetToOriginal(ctx context.Context, st *state.ReleaseState) {
	if st.Tag != "" {
		if err := e.vc.DeleteLocalTag(ctx, st.Tag); err != nil {
			e.logger.Warn("failed to delete local tag", "tag", st.Tag, "err", err)
		}
	}
	if st.OriginalCommit == "" {
		e.logger.Warn("no original commit recorded, skipping hard reset")
		return
	}
	if err := e.vc.ResetHard(ctx, st.OriginalCommit); err != nil {
		e.logger.Warn("failed to hard-reset to original commit",
			"commit", st.OriginalCommit, "err", err)
		return
	}
	e.logger.Info("reset to original commit", "commit", st.OriginalCommit)
	e.deleteChangeset(st)
}

func (e *Engine) deleteChangeset(st *state.ReleaseState) {
	if st.ChangesetFile == "" {
		return
	}
	path := filepath.Join(e.workDir, st.ChangesetFile)
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("failed to delete changeset", "file", st.ChangesetFile, "err", err)
		}
		return
	}
	e.logger.Info("deleted changeset", "file", st.ChangesetFile)
}
