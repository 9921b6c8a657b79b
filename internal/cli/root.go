// Package cli provides the command-line interface for Shipway.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipway/internal/config"
	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/lock"
)

// StateDir holds the orchestrator's runtime files, relative to the
// repository root.
const StateDir = ".shipway"

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	workDir  string
	verbose  bool
	dryRun   bool
	noColor  bool
	logLevel string

	// Global config
	cfg config.RunConfig

	// Logger
	logger *log.Logger

	// logFile holds the log file handle for cleanup
	logFile *os.File

	// Styles
	styles = struct {
		Title   lipgloss.Style
		Success lipgloss.Style
		Error   lipgloss.Style
		Warning lipgloss.Style
		Subtle  lipgloss.Style
		Bold    lipgloss.Style
	}{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shipway",
	Short: "Crash-safe release pipeline for npm packages",
	Long: `Shipway drives a package release as a fixed pipeline of steps:
version bump, changeset, build, publish, push, and hosted release.

Every completed step is recorded in a durable state file, so an
interrupted release resumes exactly where it stopped, and a failed one
can be rolled back step by step.

Run 'shipway release' to start or resume a release.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "repository directory to release from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "simulate actions without making changes")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the config record, applies global flags, and finishes
// logger setup.
func initConfig() error {
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	cfg, err = config.Load(dir)
	if err != nil {
		return err
	}
	if dryRun {
		cfg.DryRun = true
	}

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	configureLogLevel()
	return configureLogFile()
}

// configureLogLevel sets the logger level based on flags.
func configureLogLevel() {
	switch logLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// configureLogFile mirrors log output into .shipway/log.
func configureLogFile() error {
	path := filepath.Join(cfg.WorkDir, StateDir, "log")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	var err error
	logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return nil
}

// Cleanup closes any open resources. Should be called before program exit.
func Cleanup() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, lock.ErrLockHeld) {
		return 3
	}
	switch sherrors.GetKind(err) {
	case sherrors.KindPreflight:
		return 2
	case sherrors.KindNotFound:
		return 4
	default:
		return 1
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shipway %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.Date)
	},
}
