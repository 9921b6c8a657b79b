// Package build implements the Builder port by running the project's
// configured build command.
package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/ports"
)

// DefaultOutputDir is the conventional build output directory.
const DefaultOutputDir = "dist"

// Runner executes the build command in the project directory.
type Runner struct {
	dir       string
	command   []string
	outputDir string
}

var _ ports.Builder = (*Runner)(nil)

// NewRunner creates a builder for dir. With no explicit command it runs
// `npm run build`, the convention for the packages this tool releases.
func NewRunner(dir string, command []string, outputDir string) *Runner {
	if len(command) == 0 {
		command = []string{"npm", "run", "build"}
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return &Runner{dir: dir, command: command, outputDir: outputDir}
}

// Build runs the project build.
func (r *Runner) Build(ctx context.Context) error {
	const op = "build.Build"

	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...) // #nosec G204 -- command comes from trusted config
	cmd.Dir = r.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "build command failed"
		}
		return sherrors.BuildWrap(err, op, msg)
	}
	return nil
}

// OutputExists reports whether the build output directory is present.
func (r *Runner) OutputExists() bool {
	info, err := os.Stat(filepath.Join(r.dir, r.outputDir))
	return err == nil && info.IsDir()
}
