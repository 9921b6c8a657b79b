package pipeline

import (
	sherrors "github.com/relicta-tech/shipway/internal/errors"
)

// ErrUnknownStep is returned for step names not present in the registry.
var ErrUnknownStep = sherrors.New(sherrors.KindNotFound, "unknown step")

// Registry is the fixed, totally ordered list of pipeline steps.
type Registry struct {
	steps []Step
	index map[string]int
}

// NewRegistry builds the standard pipeline.
func NewRegistry() *Registry {
	return newRegistry(
		&preflightStep{},
		&initStep{},
		&showCommitsStep{},
		&createChangesetStep{},
		&editChangesetStep{},
		&buildStep{},
		&versionStep{},
		&gitCommitStep{},
		&npmPublishStep{},
		&gitPushStep{},
		&ghReleaseStep{},
		&cleanupStep{},
	)
}

func newRegistry(steps ...Step) *Registry {
	r := &Registry{
		steps: steps,
		index: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		r.index[s.Name()] = i
	}
	return r
}

// Names returns the step names in pipeline order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of steps.
func (r *Registry) Len() int {
	return len(r.steps)
}

// At returns the step at position i.
func (r *Registry) At(i int) Step {
	return r.steps[i]
}

// Lookup returns the step with the given name and its position.
func (r *Registry) Lookup(name string) (Step, int, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, 0, sherrors.Wrapf(ErrUnknownStep, sherrors.KindNotFound, "pipeline.Lookup",
			"step %q is not in the pipeline", name)
	}
	return r.steps[i], i, nil
}

// Index returns the position of a step name, or -1 when unknown.
func (r *Registry) Index(name string) int {
	i, ok := r.index[name]
	if !ok {
		return -1
	}
	return i
}
