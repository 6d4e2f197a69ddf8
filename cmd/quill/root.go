// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for quill.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
	// Nightly marks CI nightly builds (set via -ldflags to "true").
	Nightly = "false"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "quill",
		Short: "The quill chat client companion CLI",
		Long: TitleStyle.Render("quill") + SubtitleStyle.Render(" - chat client companion CLI") + `

quill manages the desktop chat client from the terminal: check for
new releases, download and apply them, and inspect the updater state.

` + SubtitleStyle.Render("Examples:") + `
  quill update check        Check whether a newer release exists
  quill update install      Download and apply the available update
  quill update status       Show the updater state for this platform
  quill version             Show version and build information`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config directory)")

	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// isNightlyBuild reports whether this binary was produced by the nightly
// pipeline, which ships its own update channel.
func isNightlyBuild() bool {
	return Nightly == "true"
}

// newRootLogger builds the process-wide logger handed to the update
// machinery. Verbose mode lowers the level to Debug so guard decisions and
// feed-failure classification become visible.
func newRootLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "quill",
		Level:  level,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig points the config loader at a custom file when the --config
// flag is set. Loading itself happens in the commands that need settings, so
// a broken config file only fails the commands that read it.
func initRootConfig() {
	if cfgFile != "" {
		config.SetConfigFilePathOverride(cfgFile)
	}
}
