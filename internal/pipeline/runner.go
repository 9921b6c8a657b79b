package pipeline

import (
	"context"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/state"
)

// Runner drives the pipeline against the persisted state store.
type Runner struct {
	registry *Registry
	store    *state.Store
	env      *Env
}

// NewRunner creates a runner over the given registry, store and environment.
func NewRunner(registry *Registry, store *state.Store, env *Env) *Runner {
	return &Runner{registry: registry, store: store, env: env}
}

// Resume continues an interrupted release, or starts a fresh one when no
// state exists. A state record whose last step is the final pipeline step
// means the release already finished; the record is cleared and Resume
// reports success without running anything.
func (r *Runner) Resume(ctx context.Context) error {
	st, err := r.store.Load()
	if err != nil {
		return err
	}

	if st.Empty() {
		return r.RunFrom(ctx, r.registry.At(0).Name())
	}

	// A dry-run trace records no real progress; start over. RunFrom drops
	// the provisional completions before walking.
	if st.DryRun && !r.env.Config.DryRun {
		r.env.Logger.Info("previous run was a dry run, starting from the top")
		return r.RunFrom(ctx, r.registry.At(0).Name())
	}

	last := r.registry.Index(st.LastStep)
	if last < 0 {
		return sherrors.Newf(sherrors.KindState,
			"state record names unknown step %q; run rollback or remove it", st.LastStep)
	}

	next := last + 1
	if next >= r.registry.Len() {
		r.env.Logger.Info("release already complete", "last_step", st.LastStep)
		return r.store.Clear()
	}

	r.env.Logger.Info("resuming release", "after", st.LastStep, "at", r.registry.At(next).Name())
	return r.RunFrom(ctx, r.registry.At(next).Name())
}

// RunFrom executes the named step and every subsequent step in order.
// It fails with ErrUnknownStep, before any mutation, for names not in the
// registry.
func (r *Runner) RunFrom(ctx context.Context, name string) error {
	_, start, err := r.registry.Lookup(name)
	if err != nil {
		return err
	}

	st, err := r.store.Load()
	if err != nil {
		return err
	}
	r.discardProvisional(st)

	persist := r.persistable(st)
	for i := start; i < r.registry.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return sherrors.Wrap(err, sherrors.KindStep, "pipeline.RunFrom", "release interrupted")
		}
		if err := r.execute(ctx, r.registry.At(i), st, persist); err != nil {
			return r.failure(r.registry.At(i).Name(), st, err)
		}
	}
	return nil
}

// discardProvisional drops completions recorded by a dry run before a real
// run builds on the record. The trace's completions are not backed by
// external effects, and leaving them in place would let a real walk inherit
// a progress marker it never earned. Values recorded by read-only steps
// (original commit, last tag) reflect reality and are kept.
func (r *Runner) discardProvisional(st *state.ReleaseState) {
	if !st.DryRun || r.env.Config.DryRun {
		return
	}
	r.env.Logger.Warn("discarding provisional completions from a previous dry run")
	st.CompletedSteps = nil
	st.LastStep = ""
	st.DryRun = false
}

// persistable reports whether this run may write completions to the store.
// A dry run layered over a real partial release must not: tagging those
// completions as provisional would erase the rollback path for effects
// that actually happened, so the simulation stays in memory and the real
// record survives untouched.
func (r *Runner) persistable(st *state.ReleaseState) bool {
	if !r.env.Config.DryRun || st.Empty() || st.DryRun {
		return true
	}
	r.env.Logger.Warn("a real release is in progress, dry-run trace will not be persisted",
		"last_step", st.LastStep)
	return false
}

// RunStep executes exactly one step, unconditionally: no verification
// skip, no subsequent steps. Used for manual single-step invocation.
func (r *Runner) RunStep(ctx context.Context, name string) error {
	step, _, err := r.registry.Lookup(name)
	if err != nil {
		return err
	}

	st, err := r.store.Load()
	if err != nil {
		return err
	}
	r.discardProvisional(st)

	rc := &RunContext{State: st, Env: r.env}
	if err := r.runAction(ctx, step, rc); err != nil {
		return r.failure(name, st, err)
	}
	return r.complete(step, st, r.persistable(st))
}

// execute applies the idempotency layer to one step and runs it if needed.
//
// A step already present in completed_steps is not skipped automatically:
// its verification predicate is checked against current external reality.
// Passing verification means the recorded completion still holds and the
// step is skipped; failing means drift (manual intervention, a partial
// external failure, or a previous dry run) and the step re-executes.
// Preflight never passes verification, so a walk starting there re-checks
// everything.
func (r *Runner) execute(ctx context.Context, step Step, st *state.ReleaseState, persist bool) error {
	rc := &RunContext{State: st, Env: r.env}

	if st.Completed(step.Name()) && step.Name() != StepPreflight {
		if step.Verify(ctx, rc) {
			r.env.Logger.Info("step already done, verified", "step", step.Name())
			return nil
		}
		r.env.Logger.Warn("completed step no longer matches external state, re-executing",
			"step", step.Name())
	}

	if err := r.runAction(ctx, step, rc); err != nil {
		return err
	}
	return r.complete(step, st, persist)
}

// runAction dispatches to the real or dry-run body of a step.
func (r *Runner) runAction(ctx context.Context, step Step, rc *RunContext) error {
	if r.env.Config.DryRun {
		r.env.Logger.Info("running step (dry run)", "step", step.Name())
		return step.DryRun(ctx, rc)
	}
	r.env.Logger.Info("running step", "step", step.Name())
	return step.Run(ctx, rc)
}

// complete records a successful step in the persisted state. Cleanup in a
// real run has just destroyed the record; re-creating it to note that fact
// would undo the cleanup, so it is the one step never marked. With persist
// unset the completion is tracked in memory only.
func (r *Runner) complete(step Step, st *state.ReleaseState, persist bool) error {
	if step.Name() == StepCleanup && !r.env.Config.DryRun {
		return nil
	}

	st.MarkCompleted(step.Name())
	if !persist {
		return nil
	}
	if r.env.Config.DryRun {
		st.DryRun = true
	} else {
		// A real completion supersedes any provisional dry-run trace.
		st.DryRun = false
	}
	return r.store.Save(st)
}

// failure wraps a step error with the name of the last successful step so
// the operator knows where to resume or roll back from.
func (r *Runner) failure(stepName string, st *state.ReleaseState, err error) error {
	if sherrors.IsKind(err, sherrors.KindPreflight) || sherrors.IsKind(err, sherrors.KindNotFound) {
		return err
	}
	lastGood := st.LastStep
	if lastGood == "" {
		lastGood = "(none)"
	}
	return sherrors.Wrapf(err, sherrors.KindStep, "pipeline.Run",
		"step %s failed (last successful step: %s); resume or roll back", stepName, lastGood)
}

// StepStatus describes one step's completion for status reporting.
type StepStatus struct {
	Name string
	Done bool
}

// Status returns per-step completion along with the current state record.
func (r *Runner) Status() ([]StepStatus, *state.ReleaseState, error) {
	st, err := r.store.Load()
	if err != nil {
		return nil, nil, err
	}

	statuses := make([]StepStatus, 0, r.registry.Len())
	for _, name := range r.registry.Names() {
		statuses = append(statuses, StepStatus{Name: name, Done: st.Completed(name)})
	}
	return statuses, st, nil
}
