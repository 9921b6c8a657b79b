package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/fileutil"
	"github.com/relicta-tech/shipway/internal/manifest"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/version"
)

// recentCommitLimit bounds commit listings when the repository has never
// been tagged.
const recentCommitLimit = 50

// releaseCommitPrefix marks the release commit; git_commit verification
// looks for it in the HEAD message.
const releaseCommitPrefix = "chore(release): "

// placeholderVersion is the clearly-fake version a dry run threads through
// the remaining steps.
const placeholderVersion = "0.0.0-dry"

// resolveBump decides the increment class for this release. An explicit
// operator choice is authoritative; the classified value is still computed
// and logged so the operator can compare. BumpAuto defers to the
// classifier entirely.
func resolveBump(ctx context.Context, rc *RunContext) (version.BumpType, error) {
	env := rc.Env

	commits, err := env.VC.CommitsSince(ctx, rc.State.LastTag, recentCommitLimit)
	if err != nil {
		return "", sherrors.GitWrap(err, "pipeline.resolveBump", "failed to list commits for classification")
	}
	subjects := make([]string, len(commits))
	for i, c := range commits {
		subjects[i] = c.Subject
	}
	detected := version.Classify(subjects)

	if env.Config.Bump == version.BumpAuto {
		env.Logger.Info("bump type classified from commits", "bump", detected)
		return detected, nil
	}
	if detected != env.Config.Bump {
		env.Logger.Info("commit history suggests a different bump",
			"requested", env.Config.Bump, "detected", detected)
	}
	return env.Config.Bump, nil
}

// initStep records the pre-release snapshot: the HEAD to reset to on
// rollback and the tag the version step increments from.
type initStep struct{}

func (s *initStep) Name() string { return StepInit }

func (s *initStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.init"
	env := rc.Env

	head, err := env.VC.Head(ctx)
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}
	lastTag, err := env.VC.LastTag(ctx)
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to resolve last release tag")
	}

	rc.State.OriginalCommit = head
	rc.State.LastTag = lastTag
	rc.State.NoPreviousTag = lastTag == ""
	if lastTag == "" {
		env.Logger.Info("no previous release tag, starting from 0.0.0")
	} else {
		env.Logger.Info("release snapshot recorded", "head", shortHash(head), "last_tag", lastTag)
	}
	return nil
}

func (s *initStep) Verify(ctx context.Context, rc *RunContext) bool {
	return rc.State.OriginalCommit != ""
}

// DryRun records the real snapshot; init only reads the repository.
func (s *initStep) DryRun(ctx context.Context, rc *RunContext) error {
	return s.Run(ctx, rc)
}

// showCommitsStep prints the commits going into this release, annotated
// with their conventional-commit type.
type showCommitsStep struct{}

func (s *showCommitsStep) Name() string { return StepShowCommits }

func (s *showCommitsStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.showCommits"
	env := rc.Env

	commits, err := env.VC.CommitsSince(ctx, rc.State.LastTag, recentCommitLimit)
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to list commits")
	}

	env.Logger.Info("commits since last release", "count", len(commits))
	for _, c := range commits {
		if t := version.CommitType(c.Subject); t != "" {
			env.Logger.Info("  "+c.Subject, "hash", shortHash(c.Hash), "type", t)
		} else {
			env.Logger.Info("  "+c.Subject, "hash", shortHash(c.Hash))
		}
	}
	return nil
}

// Verify passes unconditionally; displaying commits has no external effect
// to drift from.
func (s *showCommitsStep) Verify(ctx context.Context, rc *RunContext) bool { return true }

func (s *showCommitsStep) DryRun(ctx context.Context, rc *RunContext) error {
	return s.Run(ctx, rc)
}

// createChangesetStep generates a changeset file summarizing the pending
// commits, to be reviewed and committed with the release.
type createChangesetStep struct{}

func (s *createChangesetStep) Name() string { return StepCreateChangeset }

func (s *createChangesetStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.createChangeset"
	env := rc.Env

	m, err := manifest.Read(env.Config.WorkDir)
	if err != nil {
		return sherrors.StepWrap(err, op, "failed to read package manifest")
	}
	bump, err := resolveBump(ctx, rc)
	if err != nil {
		return err
	}
	commits, err := env.VC.CommitsSince(ctx, rc.State.LastTag, recentCommitLimit)
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to list commits")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "---\n%q: %s\n---\n\n", m.Name, bump)
	for _, c := range commits {
		fmt.Fprintf(&b, "- %s\n", c.Subject)
	}

	rel := filepath.Join(ChangesetDir, uuid.NewString()[:8]+".md")
	path := filepath.Join(env.Config.WorkDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return sherrors.IOWrap(err, op, "failed to create changeset directory")
	}
	if err := fileutil.AtomicWriteFile(path, []byte(b.String()), 0644); err != nil {
		return sherrors.IOWrap(err, op, "failed to write changeset")
	}

	rc.State.ChangesetFile = rel
	env.Logger.Info("changeset created", "file", rel)
	return nil
}

func (s *createChangesetStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.State.ChangesetFile == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(rc.Env.Config.WorkDir, rc.State.ChangesetFile))
	return err == nil
}

func (s *createChangesetStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.State.ChangesetFile = filepath.Join(ChangesetDir, "dry-run.md")
	rc.Env.Logger.Info("would create changeset", "file", rc.State.ChangesetFile)
	return nil
}

// editChangesetStep hands the generated changeset to the operator's editor
// when interactive editing is enabled.
type editChangesetStep struct{}

func (s *editChangesetStep) Name() string { return StepEditChangeset }

func (s *editChangesetStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.editChangeset"
	env := rc.Env

	if !env.Config.Edit {
		env.Logger.Info("changeset editing disabled, keeping generated content")
		return nil
	}
	if env.Editor == nil {
		env.Logger.Warn("no editor available, keeping generated content")
		return nil
	}
	if rc.State.ChangesetFile == "" {
		return sherrors.Step(op, "no changeset file recorded; run create_changeset first")
	}

	path := filepath.Join(env.Config.WorkDir, rc.State.ChangesetFile)
	if err := env.Editor(path); err != nil {
		return sherrors.StepWrap(err, op, "editor session failed")
	}
	return nil
}

func (s *editChangesetStep) Verify(ctx context.Context, rc *RunContext) bool {
	if !rc.Env.Config.Edit || rc.State.ChangesetFile == "" {
		return true
	}
	_, err := os.Stat(filepath.Join(rc.Env.Config.WorkDir, rc.State.ChangesetFile))
	return err == nil
}

func (s *editChangesetStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would open changeset in editor", "file", rc.State.ChangesetFile)
	return nil
}

// buildStep runs the project build.
type buildStep struct{}

func (s *buildStep) Name() string { return StepBuild }

func (s *buildStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.build"

	if err := rc.Env.Builder.Build(ctx); err != nil {
		return sherrors.BuildWrap(err, op, "build failed")
	}
	rc.Env.Logger.Info("build succeeded")
	return nil
}

func (s *buildStep) Verify(ctx context.Context, rc *RunContext) bool {
	return rc.Env.Builder.OutputExists()
}

func (s *buildStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would run the project build")
	return nil
}

// versionStep resolves the next version, rewrites the manifest, and records
// the version and tag for every later step.
type versionStep struct{}

func (s *versionStep) Name() string { return StepVersion }

func (s *versionStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.version"
	env := rc.Env

	bump, err := resolveBump(ctx, rc)
	if err != nil {
		return err
	}
	next, err := version.Next(rc.State.LastTag, bump)
	if err != nil {
		return sherrors.StepWrap(err, op, "failed to compute next version")
	}

	if err := manifest.WriteVersion(env.Config.WorkDir, next); err != nil {
		return sherrors.StepWrap(err, op, "failed to update package manifest")
	}

	rc.State.BumpType = string(bump)
	rc.State.Version = next
	rc.State.Tag = version.TagFor(next)
	env.Logger.Info("version resolved", "bump", bump, "version", next, "tag", rc.State.Tag)
	return nil
}

func (s *versionStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.State.Version == "" {
		return false
	}
	m, err := manifest.Read(rc.Env.Config.WorkDir)
	if err != nil {
		return false
	}
	same, err := version.Compare(m.Version, rc.State.Version)
	return err == nil && same
}

func (s *versionStep) DryRun(ctx context.Context, rc *RunContext) error {
	bump := rc.Env.Config.Bump
	if bump == version.BumpAuto {
		bump = version.BumpPatch
	}
	rc.State.BumpType = string(bump)
	rc.State.Version = placeholderVersion
	rc.State.Tag = version.TagFor(placeholderVersion)
	rc.Env.Logger.Info("would bump version and rewrite manifest",
		"bump", bump, "placeholder", placeholderVersion)
	return nil
}

// gitCommitStep commits the release changes and tags the result.
type gitCommitStep struct{}

func (s *gitCommitStep) Name() string { return StepGitCommit }

func (s *gitCommitStep) releaseMessage(rc *RunContext) string {
	return releaseCommitPrefix + rc.State.Tag
}

func (s *gitCommitStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.gitCommit"
	env := rc.Env

	if rc.State.Tag == "" {
		return sherrors.Step(op, "no release tag recorded; run the version step first")
	}

	msg := s.releaseMessage(rc)
	hash, err := env.VC.CommitAll(ctx, msg)
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to create release commit")
	}
	if err := env.VC.CreateTag(ctx, rc.State.Tag, "Release "+rc.State.Tag); err != nil {
		return sherrors.GitWrap(err, op, "failed to create release tag")
	}
	env.Logger.Info("release committed and tagged", "commit", shortHash(hash), "tag", rc.State.Tag)
	return nil
}

func (s *gitCommitStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.State.Tag == "" {
		return false
	}
	msg, err := rc.Env.VC.HeadMessage(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(msg, s.releaseMessage(rc))
}

func (s *gitCommitStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would commit release changes and tag",
		"message", s.releaseMessage(rc), "tag", rc.State.Tag)
	return nil
}

// npmPublishStep publishes the package. Publishing is the one effect the
// rollback engine cannot compensate, so it asks for confirmation first.
type npmPublishStep struct{}

func (s *npmPublishStep) Name() string { return StepNpmPublish }

func (s *npmPublishStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.npmPublish"
	env := rc.Env

	if !env.Config.Yes {
		prompt := fmt.Sprintf("Publish version %s to the registry? This cannot be undone automatically.", rc.State.Version)
		if env.Confirm == nil || !env.Confirm(prompt) {
			return sherrors.Step(op, "publish not confirmed")
		}
	}

	if err := env.Registry.Publish(ctx, env.Config.WorkDir); err != nil {
		return sherrors.RegistryWrap(err, op, "publish failed")
	}
	env.Logger.Info("package published", "version", rc.State.Version)
	return nil
}

func (s *npmPublishStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.State.Version == "" {
		return false
	}
	m, err := manifest.Read(rc.Env.Config.WorkDir)
	if err != nil {
		return false
	}
	published, err := rc.Env.Registry.PublishedVersion(ctx, m.Name)
	if err != nil || published == "" {
		return false
	}
	same, err := version.Compare(published, rc.State.Version)
	return err == nil && same
}

func (s *npmPublishStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would publish package to the registry", "version", rc.State.Version)
	return nil
}

// gitPushStep pushes the release commit and tag to the remote.
type gitPushStep struct{}

func (s *gitPushStep) Name() string { return StepGitPush }

func (s *gitPushStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.gitPush"

	if err := rc.Env.VC.Push(ctx, rc.State.Tag); err != nil {
		return sherrors.GitWrap(err, op, "push failed")
	}
	rc.Env.Logger.Info("pushed release commit and tag", "tag", rc.State.Tag)
	return nil
}

func (s *gitPushStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.State.Tag == "" {
		return false
	}
	has, err := rc.Env.VC.HasRemoteTag(ctx, rc.State.Tag)
	return err == nil && has
}

func (s *gitPushStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would push release commit and tag", "tag", rc.State.Tag)
	return nil
}

// ghReleaseStep creates the hosted release object for the tag. Repositories
// without a recognized release host skip this with a warning, not an error.
type ghReleaseStep struct{}

func (s *ghReleaseStep) Name() string { return StepGHRelease }

func (s *ghReleaseStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.ghRelease"
	env := rc.Env

	if env.Host == nil {
		env.Logger.Warn("no release host configured, skipping release creation")
		return nil
	}

	rel := ports.Release{
		Tag:  rc.State.Tag,
		Name: rc.State.Tag,
		Body: s.releaseBody(rc),
	}
	id, err := env.Host.CreateRelease(ctx, rel)
	if err != nil {
		return sherrors.ReleaseHostWrap(err, op, "failed to create release")
	}
	env.Logger.Info("release created", "tag", rc.State.Tag, "id", id)
	return nil
}

// releaseBody uses the reviewed changeset as release notes when available.
func (s *ghReleaseStep) releaseBody(rc *RunContext) string {
	if rc.State.ChangesetFile == "" {
		return "Release " + rc.State.Tag
	}
	data, err := os.ReadFile(filepath.Join(rc.Env.Config.WorkDir, rc.State.ChangesetFile))
	if err != nil {
		return "Release " + rc.State.Tag
	}
	return string(data)
}

func (s *ghReleaseStep) Verify(ctx context.Context, rc *RunContext) bool {
	if rc.Env.Host == nil {
		return true
	}
	if rc.State.Tag == "" {
		return false
	}
	rel, err := rc.Env.Host.GetRelease(ctx, rc.State.Tag)
	return err == nil && rel != nil
}

func (s *ghReleaseStep) DryRun(ctx context.Context, rc *RunContext) error {
	if rc.Env.Host == nil {
		rc.Env.Logger.Warn("no release host configured, skipping release creation")
		return nil
	}
	rc.Env.Logger.Info("would create hosted release", "tag", rc.State.Tag)
	return nil
}

// cleanupStep destroys the persisted state record once the release has
// fully landed.
type cleanupStep struct{}

func (s *cleanupStep) Name() string { return StepCleanup }

func (s *cleanupStep) Run(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.cleanup"

	if err := rc.Env.Store.Clear(); err != nil {
		return sherrors.StateWrap(err, op, "failed to clear release state")
	}
	rc.Env.Logger.Info("release complete, state cleared", "version", rc.State.Version)
	return nil
}

// Verify fails whenever a state record still exists, which is the only
// situation in which the runner consults it.
func (s *cleanupStep) Verify(ctx context.Context, rc *RunContext) bool { return false }

// DryRun leaves the record in place so the simulated trace stays
// inspectable.
func (s *cleanupStep) DryRun(ctx context.Context, rc *RunContext) error {
	rc.Env.Logger.Info("would clear release state", "path", rc.Env.Store.Path())
	return nil
}

// shortHash abbreviates a commit hash for logs.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
