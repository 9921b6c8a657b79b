package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipway/internal/pipeline"
	"github.com/relicta-tech/shipway/internal/rollback"
)

var rollbackYes bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo a partially completed release",
	Long: `Compensate the external effects of an interrupted release, newest
first: delete the hosted release, remove the remote and local tags, and
reset the branch to the commit recorded before the release started.

A published package cannot be unpublished automatically; rollback prints
the manual remediation instead. The release attempt is abandoned and its
state cleared.`,
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "skip confirmation")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	release, err := a.lock.Acquire()
	if err != nil {
		return err
	}
	defer release()

	st, err := a.store.Load()
	if err != nil {
		return err
	}
	if st.Empty() {
		fmt.Println(styles.Subtle.Render("no release in progress, nothing to roll back"))
		return nil
	}

	if !rollbackYes {
		prompt := fmt.Sprintf("Roll back the release at step %q and abandon it?", st.LastStep)
		if !confirm(prompt) {
			fmt.Println(styles.Subtle.Render("rollback canceled"))
			return nil
		}
	}

	engine := rollback.NewEngine(pipeline.NewRegistry(), a.store, a.env.VC, a.env.Host,
		cfg.WorkDir, logger)
	if err := engine.Rollback(ctx); err != nil {
		return err
	}

	fmt.Println(styles.Success.Render("✓ rollback complete"))
	return nil
}
