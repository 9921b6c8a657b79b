package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current release",
	Long: `Display the persisted release state: which steps have completed,
the resolved version, and where a resume would pick up.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	statuses, st, err := a.runner().Status()
	if err != nil {
		return err
	}

	if st.Empty() {
		fmt.Println(styles.Subtle.Render("no release in progress"))
		return nil
	}

	fmt.Println(styles.Title.Render("release in progress"))
	if st.DryRun {
		fmt.Println(styles.Warning.Render("  (recorded by a dry run)"))
	}
	if st.Version != "" {
		fmt.Printf("  version: %s\n", styles.Bold.Render(st.Version))
	}
	if st.Tag != "" {
		fmt.Printf("  tag:     %s\n", st.Tag)
	}
	if st.BumpType != "" {
		fmt.Printf("  bump:    %s\n", st.BumpType)
	}
	fmt.Println()

	for _, s := range statuses {
		mark := styles.Subtle.Render("○")
		if s.Done {
			mark = styles.Success.Render("✓")
		}
		fmt.Printf("  %s %s\n", mark, s.Name)
	}

	fmt.Println()
	fmt.Printf("  last step: %s\n", styles.Bold.Render(st.LastStep))
	fmt.Println(styles.Subtle.Render("  run 'shipway release' to resume or 'shipway rollback' to abandon"))
	return nil
}
