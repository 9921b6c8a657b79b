package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/shipway/internal/config"
	"github.com/relicta-tech/shipway/internal/manifest"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/state"
	"github.com/relicta-tech/shipway/internal/version"
)

// fakeVC is an in-memory VersionControl with enough behavior for the
// pipeline: CommitAll advances HEAD, Push populates the remote tag set.
type fakeVC struct {
	head        string
	headMessage string
	lastTag     string
	branch      string
	clean       bool
	commits     []ports.Commit

	localTags  map[string]bool
	remoteTags map[string]bool

	commitCalls int
	pushCalls   int
	resetTo     string

	pushErr error
}

func newFakeVC() *fakeVC {
	return &fakeVC{
		head:   "aaaa1111",
		branch: "main",
		clean:  true,
		commits: []ports.Commit{
			{Hash: "aaaa1111", Subject: "feat: add export"},
			{Hash: "bbbb2222", Subject: "fix: handle empty input"},
		},
		localTags:  make(map[string]bool),
		remoteTags: make(map[string]bool),
	}
}

func (f *fakeVC) Head(context.Context) (string, error) { return f.head, nil }

func (f *fakeVC) HeadMessage(context.Context) (string, error) { return f.headMessage, nil }

func (f *fakeVC) LastTag(context.Context) (string, error) { return f.lastTag, nil }

func (f *fakeVC) CommitsSince(_ context.Context, _ string, limit int) ([]ports.Commit, error) {
	if limit > 0 && len(f.commits) > limit {
		return f.commits[:limit], nil
	}
	return f.commits, nil
}

func (f *fakeVC) IsClean(context.Context) (bool, error) { return f.clean, nil }

func (f *fakeVC) CurrentBranch(context.Context) (string, error) { return f.branch, nil }

func (f *fakeVC) DefaultBranch(context.Context) (string, error) { return "main", nil }

func (f *fakeVC) RemoteURL(context.Context) (string, error) {
	return "git@github.com:acme/widget.git", nil
}

func (f *fakeVC) CommitAll(_ context.Context, message string) (string, error) {
	f.commitCalls++
	f.headMessage = message
	f.head = fmt.Sprintf("cccc%04d", f.commitCalls)
	return f.head, nil
}

func (f *fakeVC) CreateTag(_ context.Context, tag, _ string) error {
	f.localTags[tag] = true
	return nil
}

func (f *fakeVC) Push(_ context.Context, tag string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushCalls++
	if tag != "" {
		f.remoteTags[tag] = true
	}
	return nil
}

func (f *fakeVC) HasRemoteTag(_ context.Context, tag string) (bool, error) {
	return f.remoteTags[tag], nil
}

func (f *fakeVC) DeleteRemoteTag(_ context.Context, tag string) error {
	delete(f.remoteTags, tag)
	return nil
}

func (f *fakeVC) DeleteLocalTag(_ context.Context, tag string) error {
	delete(f.localTags, tag)
	return nil
}

func (f *fakeVC) ResetHard(_ context.Context, commit string) error {
	f.resetTo = commit
	return nil
}

// fakeRegistry is an in-memory PackageRegistry. Publish records the
// manifest version found in the published directory.
type fakeRegistry struct {
	user      string
	published map[string]string

	publishCalls int
	publishErr   error
	whoamiErr    error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{user: "release-bot", published: make(map[string]string)}
}

func (f *fakeRegistry) Whoami(context.Context) (string, error) {
	if f.whoamiErr != nil {
		return "", f.whoamiErr
	}
	return f.user, nil
}

func (f *fakeRegistry) Publish(_ context.Context, dir string) error {
	f.publishCalls++
	if f.publishErr != nil {
		return f.publishErr
	}
	m, err := manifest.Read(dir)
	if err != nil {
		return err
	}
	f.published[m.Name] = m.Version
	return nil
}

func (f *fakeRegistry) PublishedVersion(_ context.Context, pkg string) (string, error) {
	return f.published[pkg], nil
}

// fakeHost is an in-memory ReleaseHost keyed by tag.
type fakeHost struct {
	releases map[string]*ports.Release
	nextID   int64

	createCalls int
	authErr     error
}

func newFakeHost() *fakeHost {
	return &fakeHost{releases: make(map[string]*ports.Release)}
}

func (f *fakeHost) AuthCheck(context.Context) error { return f.authErr }

func (f *fakeHost) CreateRelease(_ context.Context, rel ports.Release) (int64, error) {
	f.createCalls++
	f.nextID++
	rel.ID = f.nextID
	f.releases[rel.Tag] = &rel
	return rel.ID, nil
}

func (f *fakeHost) GetRelease(_ context.Context, tag string) (*ports.Release, error) {
	return f.releases[tag], nil
}

func (f *fakeHost) DeleteRelease(_ context.Context, id int64) error {
	for tag, rel := range f.releases {
		if rel.ID == id {
			delete(f.releases, tag)
		}
	}
	return nil
}

// fakeBuilder is an in-memory Builder.
type fakeBuilder struct {
	buildCalls int
	buildErr   error
	output     bool
}

func (f *fakeBuilder) Build(context.Context) error {
	f.buildCalls++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.output = true
	return nil
}

func (f *fakeBuilder) OutputExists() bool { return f.output }

// testEnv bundles a fully faked pipeline environment over a temp checkout.
type testEnv struct {
	dir      string
	store    *state.Store
	env      *Env
	vc       *fakeVC
	registry *fakeRegistry
	host     *fakeHost
	builder  *fakeBuilder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	writeManifest(t, dir, "@acme/widget", "1.0.0")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ChangesetDir), 0755))

	store, err := state.NewStore(filepath.Join(dir, ".shipway", "state"))
	require.NoError(t, err)

	vc := newFakeVC()
	registry := newFakeRegistry()
	host := newFakeHost()
	builder := &fakeBuilder{}

	env := &Env{
		Config: config.RunConfig{
			WorkDir: dir,
			Bump:    version.BumpPatch,
			Yes:     true,
		},
		Store:    store,
		VC:       vc,
		Registry: registry,
		Host:     host,
		Builder:  builder,
		Logger:   log.New(io.Discard),
	}

	return &testEnv{
		dir:      dir,
		store:    store,
		env:      env,
		vc:       vc,
		registry: registry,
		host:     host,
		builder:  builder,
	}
}

func (te *testEnv) runner() *Runner {
	return NewRunner(NewRegistry(), te.store, te.env)
}

func writeManifest(t *testing.T, dir, name, version string) {
	t.Helper()
	content := fmt.Sprintf("{\n  \"name\": %q,\n  \"version\": %q\n}\n", name, version)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.File), []byte(content), 0644))
}
