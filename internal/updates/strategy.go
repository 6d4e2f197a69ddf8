// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pkg/browser"

	"github.com/quillchat/quill/pkg/platform"
)

const (
	// installerFileName is the scratch filename for the GUI installer.
	installerFileName = "Update.exe"
	// portableFileName is the scratch filename for the portable archive.
	portableFileName = "update.zip"
	// updaterRelPath locates the companion updater next to the running
	// binary in portable deployments. The companion swaps the application
	// files and relaunches once this process has exited.
	updaterRelPath = "updater/quill-updater.exe"
	// restartArg tells the companion updater to relaunch quill after the
	// swap.
	restartArg = "restart"
)

// ErrEmptyArtifact indicates a download produced zero bytes; persisting it
// would leave a truncated file, so it is treated as a write failure.
var ErrEmptyArtifact = errors.New("artifact is empty")

type (
	// Launcher starts an executable detached from the current process. It
	// reports whether the launch itself succeeded, not whether the launched
	// process later does.
	Launcher interface {
		Launch(path string, args ...string) error
	}

	// DownloadError classifies an install failure as an artifact download
	// problem.
	DownloadError struct{ Err error }
	// WriteError classifies an install failure as a scratch-file persistence
	// problem.
	WriteError struct{ Err error }
	// LaunchError classifies an install failure as the persisted artifact
	// failing to start. The current process must stay alive.
	LaunchError struct{ Err error }

	// InstallStrategy is one member of the closed set of platform install
	// flows, selected once at startup. Strategies only return classified
	// outcomes; status assignment stays with the Manager.
	InstallStrategy interface {
		// Name identifies the strategy in logs.
		Name() string
		// InApp reports whether Install downloads and launches an artifact.
		// Non-in-app strategies only point the user at a download page.
		InApp() bool
		// Install runs the platform flow against the given artifacts.
		Install(ctx context.Context, art ArtifactLocations) error
	}

	// StrategyDeps carries the collaborators a strategy needs. Zero-value
	// fields are replaced with production defaults by StrategyFor.
	StrategyDeps struct {
		Fetcher    Fetcher            // artifact download
		ScratchDir string             // writable directory for artifacts
		Launcher   Launcher           // detached process start
		OpenURL    func(string) error // browser hand-off
		Exit       func(int)          // process termination after hand-off
		GuideURL   string             // manual-update page
		Logger     *log.Logger
	}

	// execLauncher is the production Launcher on top of os/exec.
	execLauncher struct{}

	installerStrategy struct{ deps StrategyDeps }
	portableStrategy  struct{ deps StrategyDeps }
	manualStrategy    struct{ deps StrategyDeps }
	guideStrategy     struct{ deps StrategyDeps }
)

func (e *DownloadError) Error() string { return fmt.Sprintf("downloading artifact: %v", e.Err) }
func (e *DownloadError) Unwrap() error { return e.Err }

func (e *WriteError) Error() string { return fmt.Sprintf("persisting artifact: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

func (e *LaunchError) Error() string { return fmt.Sprintf("launching artifact: %v", e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }

// Launch starts the executable and releases the process handle so it
// outlives the current process.
func (execLauncher) Launch(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// StrategyFor selects the install strategy for the probed platform identity.
// The selection happens once at startup; the state machine never branches on
// the OS again.
func StrategyFor(id platform.Identity, deps StrategyDeps) InstallStrategy {
	if deps.Launcher == nil {
		deps.Launcher = execLauncher{}
	}
	if deps.OpenURL == nil {
		deps.OpenURL = browser.OpenURL
	}
	if deps.Exit == nil {
		deps.Exit = os.Exit
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}

	switch {
	case id.OS == platform.Windows && id.Portable:
		return &portableStrategy{deps: deps}
	case id.OS == platform.Windows:
		return &installerStrategy{deps: deps}
	case id.OS == platform.Darwin:
		return &manualStrategy{deps: deps}
	default:
		return &guideStrategy{deps: deps}
	}
}

func (s *installerStrategy) Name() string { return "installer" }
func (s *installerStrategy) InApp() bool  { return true }

// Install downloads the GUI installer, persists it to the scratch directory,
// and executes it. On a successful launch the current process exits so the
// installer can replace its files; a failed launch keeps the process alive
// and falls back to opening the download URL in the browser.
func (s *installerStrategy) Install(ctx context.Context, art ArtifactLocations) error {
	data, err := s.deps.Fetcher.Fetch(ctx, art.InstallerURL)
	if err != nil {
		return &DownloadError{Err: err}
	}

	if err := verifyChecksum(data, art.InstallerSHA256); err != nil {
		return &DownloadError{Err: err}
	}

	path := filepath.Join(s.deps.ScratchDir, installerFileName)
	if err := writeArtifact(path, data); err != nil {
		return &WriteError{Err: err}
	}

	if err := s.deps.Launcher.Launch(path); err != nil {
		s.deps.Logger.Error("installer failed to start, opening manual download", "path", path, "err", err)
		if openErr := s.deps.OpenURL(art.InstallerURL); openErr != nil {
			s.deps.Logger.Warn("could not open manual download page", "err", openErr)
		}
		return &LaunchError{Err: err}
	}

	s.deps.Exit(0)
	return nil
}

func (s *portableStrategy) Name() string { return "portable" }
func (s *portableStrategy) InApp() bool  { return true }

// Install downloads the portable archive, persists it, and hands off to the
// companion updater with restart semantics. The companion waits for this
// process to exit, swaps the application files, and relaunches.
func (s *portableStrategy) Install(ctx context.Context, art ArtifactLocations) error {
	data, err := s.deps.Fetcher.Fetch(ctx, art.PortableURL)
	if err != nil {
		return &DownloadError{Err: err}
	}

	if err := verifyChecksum(data, art.PortableSHA256); err != nil {
		return &DownloadError{Err: err}
	}

	archive := filepath.Join(s.deps.ScratchDir, portableFileName)
	if err := writeArtifact(archive, data); err != nil {
		return &WriteError{Err: err}
	}

	updater, err := companionUpdaterPath()
	if err != nil {
		return &LaunchError{Err: err}
	}

	if err := s.deps.Launcher.Launch(updater, archive, restartArg); err != nil {
		return &LaunchError{Err: err}
	}

	s.deps.Exit(0)
	return nil
}

func (s *manualStrategy) Name() string { return "manual" }
func (s *manualStrategy) InApp() bool  { return false }

// Install opens the installer download in the browser; the user runs it by
// hand. A terminal alternative path, not a failure.
func (s *manualStrategy) Install(_ context.Context, art ArtifactLocations) error {
	if err := s.deps.OpenURL(art.InstallerURL); err != nil {
		return &LaunchError{Err: err}
	}
	return nil
}

func (s *guideStrategy) Name() string { return "guide" }
func (s *guideStrategy) InApp() bool  { return false }

// Install opens the static update guide. Used on platforms without any
// in-app install flow.
func (s *guideStrategy) Install(_ context.Context, _ ArtifactLocations) error {
	if err := s.deps.OpenURL(s.deps.GuideURL); err != nil {
		return &LaunchError{Err: err}
	}
	return nil
}

// writeArtifact persists data to path, truncating any existing file. A
// zero-byte payload or a short write counts as failure, and no partial file
// is left behind on error.
func writeArtifact(path string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyArtifact
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}

	return nil
}

// companionUpdaterPath resolves the updater binary shipped alongside the
// portable deployment.
func companionUpdaterPath() (string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), filepath.FromSlash(updaterRelPath)), nil
}

//nolint:gochecknoglobals // Test seam for os.Executable().
var osExecutable = os.Executable
