package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipway/internal/version"
)

var (
	bumpMajor bool
	bumpMinor bool
	bumpPatch bool
	bumpAuto  bool
	skipEdit  bool
	assumeYes bool
	onlyStep  string
	fromStep  string
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Start or resume a release",
	Long: `Run the release pipeline. Without flags this resumes an interrupted
release, or starts a fresh one when none is in progress.

Steps already recorded as complete are verified against external reality
and skipped only when they still hold; anything that drifted re-executes.

Examples:
  # Start or resume a release with a patch bump
  shipway release

  # Classify the bump from the commits since the last tag
  shipway release --auto

  # Simulate the whole pipeline without touching anything
  shipway release --dry-run

  # Re-run a single step
  shipway release --step npm_publish`,
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().BoolVar(&bumpMajor, "major", false, "bump the major version")
	releaseCmd.Flags().BoolVar(&bumpMinor, "minor", false, "bump the minor version")
	releaseCmd.Flags().BoolVar(&bumpPatch, "patch", false, "bump the patch version")
	releaseCmd.Flags().BoolVar(&bumpAuto, "auto", false, "classify the bump from commit history")
	releaseCmd.Flags().BoolVar(&skipEdit, "no-edit", false, "skip interactive changeset editing")
	releaseCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to all prompts")
	releaseCmd.Flags().StringVar(&onlyStep, "step", "", "run exactly one named step")
	releaseCmd.Flags().StringVar(&fromStep, "from", "", "run from the named step to the end")
	releaseCmd.MarkFlagsMutuallyExclusive("major", "minor", "patch", "auto")
	releaseCmd.MarkFlagsMutuallyExclusive("step", "from")

	rootCmd.AddCommand(releaseCmd)
}

// applyReleaseFlags folds the release flags into the run configuration.
// An explicit bump flag takes precedence over the config record.
func applyReleaseFlags() {
	switch {
	case bumpMajor:
		cfg.Bump = version.BumpMajor
	case bumpMinor:
		cfg.Bump = version.BumpMinor
	case bumpPatch:
		cfg.Bump = version.BumpPatch
	case bumpAuto:
		cfg.Bump = version.BumpAuto
	}
	if skipEdit {
		cfg.Edit = false
	}
	if assumeYes {
		cfg.Yes = true
	}
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyReleaseFlags()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	release, err := a.lock.Acquire()
	if err != nil {
		return err
	}
	defer release()

	runner := a.runner()
	switch {
	case onlyStep != "":
		err = runner.RunStep(ctx, onlyStep)
	case fromStep != "":
		err = runner.RunFrom(ctx, fromStep)
	default:
		err = runner.Resume(ctx)
	}
	if err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Println(styles.Success.Render("✓ dry run complete, nothing was changed"))
	} else {
		fmt.Println(styles.Success.Render("✓ release complete"))
	}
	return nil
}
