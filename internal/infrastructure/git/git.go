// Package git implements the VersionControl port on top of go-git.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/ports"
)

// DefaultRemote is the remote the pipeline pushes to.
const DefaultRemote = "origin"

// tagSignature identifies tags and commits created by the orchestrator.
var tagSignature = &object.Signature{
	Name:  "shipway",
	Email: "shipway@localhost",
}

// Adapter implements ports.VersionControl using a local repository opened
// with go-git.
type Adapter struct {
	repo     *gogit.Repository
	worktree *gogit.Worktree
	auth     transport.AuthMethod
}

var _ ports.VersionControl = (*Adapter)(nil)

// Open opens the repository at path. A GITHUB_TOKEN in the environment is
// used as basic-auth for remote operations over HTTPS.
func Open(path string) (*Adapter, error) {
	const op = "git.Open"

	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, sherrors.GitWrap(err, op, "failed to open repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, sherrors.GitWrap(err, op, "failed to get worktree")
	}

	a := &Adapter{repo: repo, worktree: worktree}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		a.auth = &http.BasicAuth{Username: "x-access-token", Password: token}
	}
	return a, nil
}

// Head returns the current HEAD commit hash.
func (a *Adapter) Head(_ context.Context) (string, error) {
	const op = "git.Head"

	head, err := a.repo.Head()
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}

// HeadMessage returns the full message of the HEAD commit.
func (a *Adapter) HeadMessage(_ context.Context) (string, error) {
	const op = "git.HeadMessage"

	head, err := a.repo.Head()
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}
	commit, err := a.repo.CommitObject(head.Hash())
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to read HEAD commit")
	}
	return commit.Message, nil
}

// LastTag returns the highest semver tag, or "" when no version tag exists.
func (a *Adapter) LastTag(ctx context.Context) (string, error) {
	const op = "git.LastTag"

	iter, err := a.repo.Tags()
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to get tags iterator")
	}
	defer iter.Close()

	type versionTag struct {
		name    string
		version *semver.Version
	}
	var tags []versionTag

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := ref.Name().Short()
		if v, parseErr := semver.NewVersion(strings.TrimPrefix(name, "v")); parseErr == nil {
			tags = append(tags, versionTag{name: name, version: v})
		}
		return nil
	})
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to iterate tags")
	}

	if len(tags) == 0 {
		return "", nil
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].version.GreaterThan(tags[j].version)
	})
	return tags[0].name, nil
}

// CommitsSince lists commits after ref, newest first. With an empty ref the
// walk stops after limit commits instead.
func (a *Adapter) CommitsSince(ctx context.Context, ref string, limit int) ([]ports.Commit, error) {
	const op = "git.CommitsSince"

	head, err := a.repo.Head()
	if err != nil {
		return nil, sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}

	var stopAt plumbing.Hash
	if ref != "" {
		hash, err := a.resolveRef(ref)
		if err != nil {
			return nil, sherrors.GitWrap(err, op, fmt.Sprintf("failed to resolve %s", ref))
		}
		stopAt = hash
	}

	iter, err := a.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, sherrors.GitWrap(err, op, "failed to walk history")
	}
	defer iter.Close()

	var errStop = errors.New("stop iteration")
	var commits []ports.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if ref != "" && c.Hash == stopAt {
			return errStop
		}
		if ref == "" && limit > 0 && len(commits) >= limit {
			return errStop
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		commits = append(commits, ports.Commit{
			Hash:    c.Hash.String(),
			Subject: strings.TrimSpace(subject),
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, sherrors.GitWrap(err, op, "failed to iterate commits")
	}

	return commits, nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (a *Adapter) IsClean(_ context.Context) (bool, error) {
	const op = "git.IsClean"

	status, err := a.worktree.Status()
	if err != nil {
		return false, sherrors.GitWrap(err, op, "failed to get worktree status")
	}
	return status.IsClean(), nil
}

// CurrentBranch returns the checked-out branch name.
func (a *Adapter) CurrentBranch(_ context.Context) (string, error) {
	const op = "git.CurrentBranch"

	head, err := a.repo.Head()
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}
	if !head.Name().IsBranch() {
		return "", sherrors.Git(op, "HEAD is not on a branch (detached HEAD)")
	}
	return head.Name().Short(), nil
}

// DefaultBranch returns the remote HEAD target when reachable, falling back
// to a local main/master branch and finally to "main".
func (a *Adapter) DefaultBranch(_ context.Context) (string, error) {
	remote, err := a.repo.Remote(DefaultRemote)
	if err == nil {
		refs, listErr := remote.List(&gogit.ListOptions{Auth: a.auth})
		if listErr == nil {
			for _, ref := range refs {
				if ref.Name() == plumbing.HEAD && ref.Target().IsBranch() {
					return ref.Target().Short(), nil
				}
			}
		}
	}

	for _, name := range []string{"main", "master"} {
		if ref, refErr := a.repo.Reference(plumbing.NewBranchReferenceName(name), true); refErr == nil && ref != nil {
			return name, nil
		}
	}
	return "main", nil
}

// RemoteURL returns the primary remote's URL, or "" without a remote.
func (a *Adapter) RemoteURL(_ context.Context) (string, error) {
	remote, err := a.repo.Remote(DefaultRemote)
	if err != nil {
		return "", nil
	}
	cfg := remote.Config()
	if len(cfg.URLs) == 0 {
		return "", nil
	}
	return cfg.URLs[0], nil
}

// CommitAll stages every change and commits with the given message.
func (a *Adapter) CommitAll(_ context.Context, message string) (string, error) {
	const op = "git.CommitAll"

	if err := a.worktree.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", sherrors.GitWrap(err, op, "failed to stage changes")
	}

	sig := *tagSignature
	sig.When = time.Now()
	hash, err := a.worktree.Commit(message, &gogit.CommitOptions{Author: &sig})
	if err != nil {
		return "", sherrors.GitWrap(err, op, "failed to commit")
	}
	return hash.String(), nil
}

// CreateTag creates an annotated tag at HEAD.
func (a *Adapter) CreateTag(_ context.Context, tag, message string) error {
	const op = "git.CreateTag"

	head, err := a.repo.Head()
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to resolve HEAD")
	}

	sig := *tagSignature
	sig.When = time.Now()
	_, err = a.repo.CreateTag(tag, head.Hash(), &gogit.CreateTagOptions{
		Message: message,
		Tagger:  &sig,
	})
	if err != nil {
		return sherrors.GitWrap(err, op, fmt.Sprintf("failed to create tag %s", tag))
	}
	return nil
}

// Push pushes the current branch and the given tag to the remote.
func (a *Adapter) Push(ctx context.Context, tag string) error {
	const op = "git.Push"

	branch, err := a.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	refSpecs := []config.RefSpec{
		config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
	}
	if tag != "" {
		refSpecs = append(refSpecs,
			config.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag)))
	}

	err = a.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: DefaultRemote,
		RefSpecs:   refSpecs,
		Auth:       a.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return sherrors.GitWrap(err, op, "failed to push")
	}
	return nil
}

// HasRemoteTag reports whether the remote already has the tag.
func (a *Adapter) HasRemoteTag(_ context.Context, tag string) (bool, error) {
	const op = "git.HasRemoteTag"

	remote, err := a.repo.Remote(DefaultRemote)
	if err != nil {
		return false, sherrors.GitWrap(err, op, "no remote configured")
	}

	refs, err := remote.List(&gogit.ListOptions{Auth: a.auth})
	if err != nil {
		return false, sherrors.GitWrap(err, op, "failed to list remote refs")
	}

	want := plumbing.NewTagReferenceName(tag)
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}

// DeleteRemoteTag removes a tag from the remote by pushing an empty source
// refspec, the protocol-level equivalent of `git push origin :refs/tags/x`.
func (a *Adapter) DeleteRemoteTag(ctx context.Context, tag string) error {
	const op = "git.DeleteRemoteTag"

	err := a.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: DefaultRemote,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf(":refs/tags/%s", tag)),
		},
		Auth: a.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return sherrors.GitWrap(err, op, fmt.Sprintf("failed to delete remote tag %s", tag))
	}
	return nil
}

// DeleteLocalTag removes a tag locally.
func (a *Adapter) DeleteLocalTag(_ context.Context, tag string) error {
	const op = "git.DeleteLocalTag"

	if err := a.repo.DeleteTag(tag); err != nil && !errors.Is(err, gogit.ErrTagNotFound) {
		return sherrors.GitWrap(err, op, fmt.Sprintf("failed to delete tag %s", tag))
	}
	return nil
}

// ResetHard resets the working tree and branch head to the given commit.
func (a *Adapter) ResetHard(_ context.Context, commit string) error {
	const op = "git.ResetHard"

	hash, err := a.resolveRef(commit)
	if err != nil {
		return sherrors.GitWrap(err, op, fmt.Sprintf("failed to resolve %s", commit))
	}

	err = a.worktree.Reset(&gogit.ResetOptions{
		Commit: hash,
		Mode:   gogit.HardReset,
	})
	if err != nil {
		return sherrors.GitWrap(err, op, "failed to hard-reset")
	}
	return nil
}

// resolveRef resolves a revision string to a commit hash.
func (a *Adapter) resolveRef(ref string) (plumbing.Hash, error) {
	hash, err := a.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}
