// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/netfetch"
	"github.com/quillchat/quill/internal/tui"
	"github.com/quillchat/quill/internal/updates"
	"github.com/quillchat/quill/pkg/platform"
)

// installPollInterval paces the wait for install flows that finish without a
// status transition, like the browser hand-off on macOS.
const installPollInterval = 50 * time.Millisecond

// updateParams bundles the dependencies and flags for the update subcommands,
// enabling the core logic to be tested without a real Cobra command or a live
// release feed.
type updateParams struct {
	stdout   io.Writer
	stderr   io.Writer
	manager  *updates.Manager
	notes    bool                                   // --notes flag: render release notes on check
	jsonMode bool                                   // --json flag: machine-readable check output
	yes      bool                                   // --yes flag: skip confirmation prompt
	confirm  func(tui.ConfirmOptions) (bool, error) // prompt seam, tui.Confirm in production
}

// checkResult is the JSON document `update check --json` emits.
type checkResult struct {
	Status          string `json:"status"`
	CurrentVersion  string `json:"current_version"`
	OnlineVersion   string `json:"online_version,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	IsDowngrade     bool   `json:"is_downgrade,omitempty"`
	DisabledReason  string `json:"disabled_reason,omitempty"`
}

// newUpdateCommand creates the `quill update` command group.
func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and install quill releases",
		Long: `Check for and install quill releases.

The updater talks to the quill release feed, compares the published
version against this build, and applies the update the way this
platform supports: a GUI installer on Windows, the companion updater
for portable installs, or a browser hand-off elsewhere.`,
		Example: `  # Check whether a newer release exists
  quill update check

  # Download and apply the available update
  quill update install

  # Skip the confirmation prompt
  quill update install --yes`,
	}

	cmd.AddCommand(newUpdateCheckCommand())
	cmd.AddCommand(newUpdateInstallCommand())
	cmd.AddCommand(newUpdateStatusCommand())

	return cmd
}

func newUpdateCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			notesFlag, _ := cmd.Flags().GetBool("notes")
			jsonFlag, _ := cmd.Flags().GetBool("json")

			manager, err := buildUpdateManager()
			if err != nil {
				return err
			}

			p := updateParams{
				stdout:   cmd.OutOrStdout(),
				stderr:   cmd.ErrOrStderr(),
				manager:  manager,
				notes:    notesFlag,
				jsonMode: jsonFlag,
			}
			if err := runUpdateCheck(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 2, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("notes", true, "Render the release notes when an update is found")
	cmd.Flags().Bool("json", false, "Emit the check result as JSON")

	return cmd
}

func newUpdateInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and apply the available update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			yesFlag, _ := cmd.Flags().GetBool("yes")

			manager, err := buildUpdateManager()
			if err != nil {
				return err
			}

			p := updateParams{
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
				manager: manager,
				yes:     yesFlag,
				confirm: tui.Confirm,
			}
			if err := runUpdateInstall(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 2, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func newUpdateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the updater state for this platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			manager, err := buildUpdateManager()
			if err != nil {
				return err
			}

			p := updateParams{
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
				manager: manager,
			}
			return runUpdateStatus(p)
		},
	}
}

// buildUpdateManager assembles the update pipeline from configuration and the
// probed platform identity.
func buildUpdateManager() (*updates.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newRootLogger(verbose)
	id := platform.Probe(isNightlyBuild())

	fetcher := netfetch.NewClient(netfetch.WithUserAgent("quill/" + Version))
	feed := updates.NewFeed(fetcher, cfg.Updates.FeedURL, string(cfg.Updates.Channel))

	scratch := cfg.Updates.ScratchDir
	if scratch == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolving scratch directory: %w", err)
		}
		scratch = filepath.Join(dataDir, "updates")
	}

	strategy := updates.StrategyFor(id, updates.StrategyDeps{
		Fetcher:    fetcher,
		ScratchDir: scratch,
		GuideURL:   cfg.Updates.GuideURL,
		Logger:     logger,
	})

	return updates.NewManager(updates.ManagerParams{
		CurrentVersion:  Version,
		Identity:        id,
		Feed:            feed,
		Strategy:        strategy,
		Disabled:        cfg.Updates.Disabled,
		CheckTimeout:    cfg.Updates.CheckTimeout,
		DownloadTimeout: cfg.Updates.DownloadTimeout,
		Logger:          logger,
	}), nil
}

// runUpdateCheck runs one metadata check and reports the outcome. All
// user-facing output goes through p.stdout and p.stderr.
func runUpdateCheck(ctx context.Context, p updateParams) error {
	if reason := p.manager.DisabledReason(); reason != "" {
		if p.jsonMode {
			return printCheckJSON(p.stdout, checkResult{
				Status:         p.manager.Status().String(),
				CurrentVersion: p.manager.VersionInfo().CurrentVersion,
				DisabledReason: reason,
			})
		}
		fmt.Fprintln(p.stdout, "Update checks are off: "+reason)
		return nil
	}

	ch := p.manager.Subscribe()
	if err := p.manager.CheckForUpdates(); err != nil {
		return err
	}

	status, err := awaitCheckResult(ctx, ch)
	if err != nil {
		return err
	}

	info := p.manager.VersionInfo()

	if p.jsonMode {
		if err := printCheckJSON(p.stdout, checkResult{
			Status:          status.String(),
			CurrentVersion:  info.CurrentVersion,
			OnlineVersion:   info.OnlineVersion,
			UpdateAvailable: status == updates.StatusUpdateAvailable,
			IsDowngrade:     info.IsDowngrade,
		}); err != nil {
			return err
		}
		if status == updates.StatusSearchFailed {
			return fmt.Errorf("could not reach the release feed; check your network connection and try again")
		}
		return nil
	}

	switch status {
	case updates.StatusNoUpdateAvailable:
		fmt.Fprintf(p.stdout, "Current version: %s\n", info.CurrentVersion)
		fmt.Fprintf(p.stdout, "Latest version:  %s\n", info.OnlineVersion)
		fmt.Fprintln(p.stdout, "\nquill is up to date.")
		return nil
	case updates.StatusSearchFailed:
		return fmt.Errorf("could not reach the release feed; check your network connection and try again")
	case updates.StatusUpdateAvailable:
		fmt.Fprintf(p.stdout, "Current version: %s\n", info.CurrentVersion)
		fmt.Fprintf(p.stdout, "Latest version:  %s\n", info.OnlineVersion)
		if info.IsDowngrade {
			fmt.Fprintln(p.stdout, WarningStyle.Render("The published release is older than this build."))
		}
		fmt.Fprintf(p.stdout, "\nAn update is available: %s → %s\n", info.CurrentVersion, info.OnlineVersion)
		fmt.Fprintln(p.stdout, "Run "+CmdStyle.Render("quill update install")+" to apply it.")

		if p.notes {
			printReleaseNotes(p.stdout, p.manager.ReleaseNotes())
		}
		return nil
	default:
		return fmt.Errorf("update check ended in unexpected state %s", status)
	}
}

// runUpdateInstall checks for an update, confirms with the user, and drives
// the platform install flow to its terminal state.
//
// Flow:
//  1. Run a check; bail out when up to date or the check fails.
//  2. Confirm with the user (unless --yes), warning on downgrades.
//  3. Start the install and wait for it to finish. In-app flows that succeed
//     terminate the process from inside the strategy; a return here means a
//     failure or a browser hand-off.
func runUpdateInstall(ctx context.Context, p updateParams) error {
	if reason := p.manager.DisabledReason(); reason != "" {
		fmt.Fprintln(p.stdout, "Update checks are off: "+reason)
		return nil
	}

	ch := p.manager.Subscribe()
	if err := p.manager.CheckForUpdates(); err != nil {
		return err
	}

	status, err := awaitCheckResult(ctx, ch)
	if err != nil {
		return err
	}

	info := p.manager.VersionInfo()
	switch status {
	case updates.StatusNoUpdateAvailable:
		fmt.Fprintf(p.stdout, "quill %s is up to date.\n", info.CurrentVersion)
		return nil
	case updates.StatusSearchFailed:
		return fmt.Errorf("could not reach the release feed; check your network connection and try again")
	case updates.StatusUpdateAvailable:
		// fall through to the install flow
	default:
		return fmt.Errorf("update check ended in unexpected state %s", status)
	}

	if !p.yes {
		description := ""
		if info.IsDowngrade {
			description = "The published release is older than this build."
		}
		confirmed, confirmErr := p.confirm(tui.ConfirmOptions{
			Title:       fmt.Sprintf("Update quill from %s to %s?", info.CurrentVersion, info.OnlineVersion),
			Description: description,
			Default:     !info.IsDowngrade,
		})
		if confirmErr != nil {
			return fmt.Errorf("confirmation prompt: %w", confirmErr)
		}
		if !confirmed {
			return nil
		}
	}

	if p.manager.InAppInstall() {
		fmt.Fprintf(p.stdout, "Downloading quill %s...\n", info.OnlineVersion)
	}

	if err := p.manager.InstallUpdates(); err != nil {
		return err
	}

	final, err := awaitInstallResult(ctx, p.manager, ch)
	if err != nil {
		return err
	}

	switch final {
	case updates.StatusDownloadFailed:
		return fmt.Errorf("the update download failed; check your network connection and try again")
	case updates.StatusWriteFileFailed:
		return fmt.Errorf("the update could not be saved to disk; check free space and permissions")
	case updates.StatusLaunchFailed:
		return fmt.Errorf("the update was downloaded but could not be started; the download page was opened instead")
	default:
		// Browser hand-off flows land here; in-app flows normally exit the
		// process before reaching this point.
		fmt.Fprintln(p.stdout, SuccessStyle.Render("Follow the opened page to finish updating."))
		return nil
	}
}

// runUpdateStatus prints the updater state for this build and platform.
func runUpdateStatus(p updateParams) error {
	info := p.manager.VersionInfo()

	fmt.Fprintf(p.stdout, "Version:   %s\n", info.CurrentVersion)
	fmt.Fprintf(p.stdout, "Status:    %s\n", p.manager.Status())
	fmt.Fprintf(p.stdout, "Strategy:  %s\n", p.manager.StrategyName())

	if reason := p.manager.DisabledReason(); reason != "" {
		fmt.Fprintf(p.stdout, "Disabled:  %s\n", reason)
	}

	return nil
}

// awaitCheckResult blocks until the check reaches one of its terminal
// statuses or the context expires.
func awaitCheckResult(ctx context.Context, ch <-chan updates.Status) (updates.Status, error) {
	for {
		select {
		case <-ctx.Done():
			return updates.StatusIdle, fmt.Errorf("waiting for update check: %w", ctx.Err())
		case s := <-ch:
			switch s {
			case updates.StatusUpdateAvailable, updates.StatusNoUpdateAvailable, updates.StatusSearchFailed:
				return s, nil
			}
		}
	}
}

// awaitInstallResult blocks until the install flow finishes. Failures arrive
// as status transitions; browser hand-offs finish without one, so completion
// is also detected by polling the in-flight flag.
func awaitInstallResult(ctx context.Context, m *updates.Manager, ch <-chan updates.Status) (updates.Status, error) {
	ticker := time.NewTicker(installPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.Status(), fmt.Errorf("waiting for update install: %w", ctx.Err())
		case s := <-ch:
			if s.IsError() {
				return s, nil
			}
		case <-ticker.C:
			if !m.Installing() {
				return m.Status(), nil
			}
		}
	}
}

// printCheckJSON writes the machine-readable check result.
func printCheckJSON(w io.Writer, res checkResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// printReleaseNotes renders the Markdown release notes for the terminal.
// Rendering problems degrade to the raw text rather than failing the check.
func printReleaseNotes(w io.Writer, notes string) {
	if notes == "" {
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Fprintln(w, "\n"+notes)
		return
	}

	rendered, err := renderer.Render(notes)
	if err != nil {
		fmt.Fprintln(w, "\n"+notes)
		return
	}
	fmt.Fprint(w, rendered)
}
