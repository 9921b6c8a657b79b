package rollback

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/shipway/internal/pipeline"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/state"
)

type fakeVC struct {
	ports.VersionControl

	localTags  map[string]bool
	remoteTags map[string]bool
	resetTo    string

	remoteTagErr error
}

func newFakeVC() *fakeVC {
	return &fakeVC{localTags: make(map[string]bool), remoteTags: make(map[string]bool)}
}

func (f *fakeVC) DeleteRemoteTag(_ context.Context, tag string) error {
	if f.remoteTagErr != nil {
		return f.remoteTagErr
	}
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

type fakeHost struct {
	releases map[string]*ports.Release
	getCalls int
}

func (f *fakeHost) AuthCheck(context.Context) error { return nil }

func (f *fakeHost) CreateRelease(_ context.Context, rel ports.Release) (int64, error) {
	f.releases[rel.Tag] = &rel
	return rel.ID, nil
}

func (f *fakeHost) GetRelease(_ context.Context, tag string) (*ports.Release, error) {
	f.getCalls++
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

type fixture struct {
	dir    string
	store  *state.Store
	vc     *fakeVC
	host   *fakeHost
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := state.NewStore(filepath.Join(dir, ".shipway", "state"))
	require.NoError(t, err)

	vc := newFakeVC()
	host := &fakeHost{releases: make(map[string]*ports.Release)}
	engine := NewEngine(pipeline.NewRegistry(), store, vc, host, dir, log.New(io.Discard))

	return &fixture{dir: dir, store: store, vc: vc, host: host, engine: engine}
}

func (fx *fixture) saveState(t *testing.T, lastStep string) *state.ReleaseState {
	t.Helper()

	st := &state.ReleaseState{
		OriginalCommit: "aaaa1111",
		Version:        "1.2.3",
		Tag:            "v1.2.3",
	}
	for _, name := range pipeline.NewRegistry().Names() {
		st.MarkCompleted(name)
		if name == lastStep {
			break
		}
	}
	require.NoError(t, fx.store.Save(st))
	return st
}

func TestRollbackAfterRelease(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.saveState(t, pipeline.StepGHRelease)
	fx.vc.localTags["v1.2.3"] = true
	fx.vc.remoteTags["v1.2.3"] = true
	fx.host.releases["v1.2.3"] = &ports.Release{ID: 7, Tag: "v1.2.3"}

	require.NoError(t, fx.engine.Rollback(context.Background()))

	assert.Empty(t, fx.host.releases)
	assert.False(t, fx.vc.remoteTags["v1.2.3"])
	assert.False(t, fx.vc.localTags["v1.2.3"])
	assert.Equal(t, "aaaa1111", fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackAfterCommitSkipsRemoteCompensations(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.saveState(t, pipeline.StepGitCommit)
	fx.vc.localTags["v1.2.3"] = true
	fx.vc.remoteTags["other"] = true
	fx.host.releases["other"] = &ports.Release{ID: 1, Tag: "other"}

	require.NoError(t, fx.engine.Rollback(context.Background()))

	// remote tag and release object were never created by this run
	assert.True(t, fx.vc.remoteTags["other"])
	assert.Len(t, fx.host.releases, 1)
	assert.False(t, fx.vc.localTags["v1.2.3"])
	assert.Equal(t, "aaaa1111", fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackAfterChangesetDeletesFile(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	st := fx.saveState(t, pipeline.StepCreateChangeset)
	st.ChangesetFile = filepath.Join(".changeset", "ab12cd34.md")
	require.NoError(t, fx.store.Save(st))

	path := filepath.Join(fx.dir, st.ChangesetFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("- fix: things\n"), 0644))

	require.NoError(t, fx.engine.Rollback(context.Background()))

	assert.NoFileExists(t, path)
	assert.Empty(t, fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackAfterPushNeverConsultsReleaseHost(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.saveState(t, pipeline.StepGitPush)
	fx.vc.localTags["v1.2.3"] = true
	fx.vc.remoteTags["v1.2.3"] = true

	require.NoError(t, fx.engine.Rollback(context.Background()))

	// the release object was never created, so its compensation must not run
	assert.Equal(t, 0, fx.host.getCalls)
	assert.False(t, fx.vc.remoteTags["v1.2.3"])
	assert.Equal(t, "aaaa1111", fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackEarlyStepsIsNoOp(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.saveState(t, pipeline.StepInit)

	require.NoError(t, fx.engine.Rollback(context.Background()))
	assert.Empty(t, fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackWithoutStateIsNoOp(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	require.NoError(t, fx.engine.Rollback(context.Background()))
	assert.False(t, fx.store.Exists())
}

func TestRollbackIsBestEffort(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.saveState(t, pipeline.StepGitPush)
	fx.vc.remoteTagErr = os.ErrPermission

	require.NoError(t, fx.engine.Rollback(context.Background()))

	// the failed remote-tag deletion did not stop the reset or the clear
	assert.Equal(t, "aaaa1111", fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}

func TestRollbackOfDryRunTraceOnlyClearsState(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	st := fx.saveState(t, pipeline.StepGHRelease)
	st.DryRun = true
	require.NoError(t, fx.store.Save(st))
	fx.vc.remoteTags["v1.2.3"] = true

	require.NoError(t, fx.engine.Rollback(context.Background()))

	assert.True(t, fx.vc.remoteTags["v1.2.3"])
	assert.Empty(t, fx.vc.resetTo)
	assert.False(t, fx.store.Exists())
}
