// Package ports defines the narrow interfaces through which the release
// pipeline reaches external systems. The core depends on these capabilities
// only; production adapters live under internal/infrastructure and tests
// substitute in-memory fakes.
package ports

import "context"

// Commit is a single commit as seen by the pipeline.
type Commit struct {
	Hash    string
	Subject string
}

// VersionControl is the capability set the pipeline needs from the local
// repository and its remote.
type VersionControl interface {
	// Head returns the current HEAD commit hash.
	Head(ctx context.Context) (string, error)
	// HeadMessage returns the full message of the HEAD commit.
	HeadMessage(ctx context.Context) (string, error)
	// LastTag returns the most recent semver release tag, or "" when the
	// repository has never been tagged.
	LastTag(ctx context.Context) (string, error)
	// CommitsSince lists commits after the given ref, newest first. An
	// empty ref lists the most recent limit commits.
	CommitsSince(ctx context.Context, ref string, limit int) ([]Commit, error)
	// IsClean reports whether the working tree has no uncommitted changes.
	IsClean(ctx context.Context) (bool, error)
	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context) (string, error)
	// DefaultBranch returns the remote-detected default branch.
	DefaultBranch(ctx context.Context) (string, error)
	// RemoteURL returns the push URL of the primary remote, or "" when
	// the repository has no remote.
	RemoteURL(ctx context.Context) (string, error)
	// CommitAll stages every change and commits with the given message.
	CommitAll(ctx context.Context, message string) (string, error)
	// CreateTag creates an annotated tag at HEAD.
	CreateTag(ctx context.Context, tag, message string) error
	// Push pushes the current branch and the given tag to the remote.
	Push(ctx context.Context, tag string) error
	// HasRemoteTag reports whether the remote already has the tag.
	HasRemoteTag(ctx context.Context, tag string) (bool, error)
	// DeleteRemoteTag removes a tag from the remote.
	DeleteRemoteTag(ctx context.Context, tag string) error
	// DeleteLocalTag removes a tag locally.
	DeleteLocalTag(ctx context.Context, tag string) error
	// ResetHard resets the working tree and branch head to the commit.
	ResetHard(ctx context.Context, commit string) error
}

// PackageRegistry is the capability set for the package registry.
type PackageRegistry interface {
	// Whoami returns the authenticated registry user, failing when the
	// registry rejects the credentials.
	Whoami(ctx context.Context) (string, error)
	// Publish publishes the package in dir to the registry.
	Publish(ctx context.Context, dir string) error
	// PublishedVersion returns the version string the registry reports
	// for the package, or "" when the package/version is unknown.
	PublishedVersion(ctx context.Context, pkg string) (string, error)
}

// Release describes a remote release object.
type Release struct {
	ID   int64
	Tag  string
	Name string
	Body string
}

// ReleaseHost is the capability set for the code-hosting release API.
type ReleaseHost interface {
	// AuthCheck verifies the configured credentials.
	AuthCheck(ctx context.Context) error
	// CreateRelease creates a release for the tag.
	CreateRelease(ctx context.Context, rel Release) (int64, error)
	// GetRelease fetches the release for a tag, or nil when absent.
	GetRelease(ctx context.Context, tag string) (*Release, error)
	// DeleteRelease removes the release object (not the tag).
	DeleteRelease(ctx context.Context, id int64) error
}

// Builder is the capability set for the project build tool.
type Builder interface {
	// Build runs the project build.
	Build(ctx context.Context) error
	// OutputExists reports whether the build output is present.
	OutputExists() bool
}
