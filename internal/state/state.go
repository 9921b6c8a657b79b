// Package state persists the release orchestrator's durable state.
//
// The on-disk format is a line-oriented text record, one key:value pair per
// line with unique keys, so other tooling (and operators) can inspect a
// half-finished release with cat. Values may contain colons; parsing splits
// on the first colon only.
package state

import (
	"slices"
	"strings"
)

// Well-known state keys. These are the only keys the orchestrator writes;
// unknown keys found in an existing record are preserved on rewrite.
const (
	KeyOriginalCommit = "original_commit"
	KeyLastTag        = "last_tag"
	KeyNoPreviousTag  = "no_previous_tag"
	KeyChangesetFile  = "changeset_file"
	KeyBumpType       = "bump_type"
	KeyVersion        = "version"
	KeyTag            = "tag"
	KeyCompletedSteps = "completed_steps"
	KeyLastStep       = "last_step"
	KeyDryRun         = "dry_run"
)

// persistOrder fixes the line order of well-known keys in the record so
// diffs between successive writes stay readable.
var persistOrder = []string{
	KeyOriginalCommit,
	KeyLastTag,
	KeyNoPreviousTag,
	KeyChangesetFile,
	KeyBumpType,
	KeyVersion,
	KeyTag,
	KeyCompletedSteps,
	KeyLastStep,
	KeyDryRun,
}

// ReleaseState is the single persisted aggregate for a release attempt.
// It is read and written as a whole on each mutation.
type ReleaseState struct {
	// OriginalCommit is the HEAD hash recorded before any mutation, the
	// reset target for rollback.
	OriginalCommit string
	// LastTag is the most recent release tag at the start of the attempt.
	LastTag string
	// NoPreviousTag is set when the repository has never been tagged.
	NoPreviousTag bool
	// ChangesetFile is the path of the generated changeset, if any.
	ChangesetFile string
	// BumpType is the chosen increment class (major, minor, patch).
	BumpType string
	// Version is the resolved next version (without tag prefix).
	Version string
	// Tag is the release tag derived from Version.
	Tag string
	// CompletedSteps holds step names in execution order, no duplicates.
	CompletedSteps []string
	// LastStep is the most recently completed step. Redundant with the
	// tail of CompletedSteps, kept for fast rollback dispatch.
	LastStep string
	// DryRun marks every completion in this record as provisional: it was
	// produced by a simulated run and is not backed by real external state.
	DryRun bool

	// extra preserves unrecognized keys across load/save round trips.
	extra map[string]string
}

// Empty reports whether no release is in progress.
func (s *ReleaseState) Empty() bool {
	return len(s.CompletedSteps) == 0 && s.LastStep == ""
}

// Completed reports whether the named step has been marked done.
func (s *ReleaseState) Completed(step string) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// MarkCompleted records a step as done, preserving insertion order and the
// no-duplicates invariant. LastStep advances only when the step is newly
// appended, keeping it equal to the tail of CompletedSteps: re-running an
// earlier step (drift repair, manual --step) must not rewind the progress
// marker that resume and rollback dispatch on.
func (s *ReleaseState) MarkCompleted(step string) {
	if s.Completed(step) {
		return
	}
	s.CompletedSteps = append(s.CompletedSteps, step)
	s.LastStep = step
}

// Get returns the value for a well-known or preserved key.
func (s *ReleaseState) Get(key string) (string, bool) {
	switch key {
	case KeyOriginalCommit:
		return s.OriginalCommit, s.OriginalCommit != ""
	case KeyLastTag:
		return s.LastTag, s.LastTag != ""
	case KeyNoPreviousTag:
		if !s.NoPreviousTag {
			return "", false
		}
		return "true", true
	case KeyChangesetFile:
		return s.ChangesetFile, s.ChangesetFile != ""
	case KeyBumpType:
		return s.BumpType, s.BumpType != ""
	case KeyVersion:
		return s.Version, s.Version != ""
	case KeyTag:
		return s.Tag, s.Tag != ""
	case KeyCompletedSteps:
		if len(s.CompletedSteps) == 0 {
			return "", false
		}
		return strings.Join(s.CompletedSteps, ","), true
	case KeyLastStep:
		return s.LastStep, s.LastStep != ""
	case KeyDryRun:
		if !s.DryRun {
			return "", false
		}
		return "true", true
	default:
		v, ok := s.extra[key]
		return v, ok
	}
}

// Set stores a value under a well-known or arbitrary key. Setting a
// well-known key overwrites the typed field, which is what a re-running
// step does after drift repair.
func (s *ReleaseState) Set(key, value string) {
	switch key {
	case KeyOriginalCommit:
		s.OriginalCommit = value
	case KeyLastTag:
		s.LastTag = value
	case KeyNoPreviousTag:
		s.NoPreviousTag = value == "true"
	case KeyChangesetFile:
		s.ChangesetFile = value
	case KeyBumpType:
		s.BumpType = value
	case KeyVersion:
		s.Version = value
	case KeyTag:
		s.Tag = value
	case KeyCompletedSteps:
		if value == "" {
			s.CompletedSteps = nil
			return
		}
		s.CompletedSteps = strings.Split(value, ",")
	case KeyLastStep:
		s.LastStep = value
	case KeyDryRun:
		s.DryRun = value == "true"
	default:
		if s.extra == nil {
			s.extra = make(map[string]string)
		}
		s.extra[key] = value
	}
}

// encode renders the state as the line-oriented record. Keys with empty
// values are omitted so an absent key reads back as absent.
func (s *ReleaseState) encode() []byte {
	var b strings.Builder
	for _, key := range persistOrder {
		if v, ok := s.Get(key); ok {
			b.WriteString(key)
			b.WriteByte(':')
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	extraKeys := make([]string, 0, len(s.extra))
	for k := range s.extra {
		extraKeys = append(extraKeys, k)
	}
	slices.Sort(extraKeys)
	for _, k := range extraKeys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(s.extra[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// decode parses a line-oriented record. Later duplicates win, matching the
// replace-or-append contract of Set.
func decode(data []byte) *ReleaseState {
	s := &ReleaseState{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		s.Set(key, value)
	}
	return s
}
