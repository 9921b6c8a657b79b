package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/relicta-tech/shipway/internal/config"
	"github.com/relicta-tech/shipway/internal/infrastructure/build"
	"github.com/relicta-tech/shipway/internal/infrastructure/git"
	"github.com/relicta-tech/shipway/internal/infrastructure/github"
	"github.com/relicta-tech/shipway/internal/infrastructure/npm"
	"github.com/relicta-tech/shipway/internal/lock"
	"github.com/relicta-tech/shipway/internal/pipeline"
	"github.com/relicta-tech/shipway/internal/ports"
	"github.com/relicta-tech/shipway/internal/state"
)

// app bundles the wired environment for one command invocation.
type app struct {
	store *state.Store
	lock  *lock.Manager
	env   *pipeline.Env
}

// newApp opens the repository and wires production adapters into a
// pipeline environment.
func newApp(ctx context.Context, cfg config.RunConfig) (*app, error) {
	vc, err := git.Open(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	store, err := state.NewStore(filepath.Join(cfg.WorkDir, StateDir, "state"))
	if err != nil {
		return nil, err
	}

	env := &pipeline.Env{
		Config:   cfg,
		Store:    store,
		VC:       vc,
		Registry: npm.NewClient(cfg.WorkDir),
		Host:     detectHost(ctx, vc),
		Builder:  build.NewRunner(cfg.WorkDir, nil, build.DefaultOutputDir),
		Logger:   logger,
		Confirm:  confirm,
		Editor:   openEditor,
	}

	return &app{
		store: store,
		lock:  lock.NewManager(filepath.Join(cfg.WorkDir, StateDir, "lock"), logger),
		env:   env,
	}, nil
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.NewRunner(pipeline.NewRegistry(), a.store, a.env)
}

// detectHost builds a release-host client from the repository remote. A
// missing remote, an unrecognized URL, or an absent token all yield nil;
// the pipeline then skips release creation with a warning.
func detectHost(ctx context.Context, vc *git.Adapter) ports.ReleaseHost {
	url, err := vc.RemoteURL(ctx)
	if err != nil || url == "" {
		return nil
	}
	owner, repo, ok := github.ParseRemote(url)
	if !ok {
		return nil
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		logger.Debug("GITHUB_TOKEN not set, release creation disabled")
		return nil
	}
	return github.NewClient(ctx, owner, repo, token)
}

// confirm asks a yes/no question on the terminal.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", styles.Bold.Render(prompt))

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// openEditor blocks on $EDITOR (vi when unset) for the given file.
func openEditor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
