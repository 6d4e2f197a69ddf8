// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/quillchat/quill/pkg/platform"
)

// fetcherFunc adapts a function to the Fetcher interface for tests.
type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

func staticFetcher(data []byte) fetcherFunc {
	return func(context.Context, string) ([]byte, error) {
		return data, nil
	}
}

func failingFetcher(err error) fetcherFunc {
	return func(context.Context, string) ([]byte, error) {
		return nil, err
	}
}

// recordingLauncher captures launch requests and returns a canned error.
type recordingLauncher struct {
	err   error
	calls int
	path  string
	args  []string
}

func (l *recordingLauncher) Launch(path string, args ...string) error {
	l.calls++
	l.path = path
	l.args = args
	return l.err
}

// exitRecorder captures process-exit requests so tests survive them.
type exitRecorder struct {
	called bool
	code   int
}

func (e *exitRecorder) fn(code int) {
	e.called = true
	e.code = code
}

// urlRecorder captures browser hand-offs.
type urlRecorder struct {
	opened []string
	err    error
}

func (u *urlRecorder) open(url string) error {
	u.opened = append(u.opened, url)
	return u.err
}

func testDeps(t *testing.T) (StrategyDeps, *recordingLauncher, *exitRecorder, *urlRecorder) {
	t.Helper()

	launcher := &recordingLauncher{}
	exit := &exitRecorder{}
	opener := &urlRecorder{}

	deps := StrategyDeps{
		Fetcher:    staticFetcher([]byte("artifact-bytes")),
		ScratchDir: t.TempDir(),
		Launcher:   launcher,
		OpenURL:    opener.open,
		Exit:       exit.fn,
		GuideURL:   "https://quillchat.dev/update",
		Logger:     log.New(io.Discard),
	}
	return deps, launcher, exit, opener
}

func TestStrategyFor_Selection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   platform.Identity
		want string
	}{
		{"windows installed", platform.Identity{OS: platform.Windows}, "installer"},
		{"windows portable", platform.Identity{OS: platform.Windows, Portable: true}, "portable"},
		{"darwin", platform.Identity{OS: platform.Darwin}, "manual"},
		{"linux", platform.Identity{OS: platform.Linux}, "guide"},
		{"unknown os", platform.Identity{OS: "plan9"}, "guide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := StrategyFor(tt.id, StrategyDeps{Logger: log.New(io.Discard)})
			if got.Name() != tt.want {
				t.Errorf("StrategyFor(%+v).Name() = %q, want %q", tt.id, got.Name(), tt.want)
			}
		})
	}
}

func TestInstallerStrategy_Success(t *testing.T) {
	t.Parallel()

	deps, launcher, exit, opener := testDeps(t)
	s := &installerStrategy{deps: deps}

	art := ArtifactLocations{InstallerURL: "https://dl.example.com/setup.exe"}
	if err := s.Install(context.Background(), art); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(deps.ScratchDir, installerFileName))
	if err != nil {
		t.Fatalf("installer not persisted: %v", err)
	}
	if string(written) != "artifact-bytes" {
		t.Errorf("persisted content = %q", written)
	}

	if launcher.calls != 1 {
		t.Fatalf("launcher called %d times, want 1", launcher.calls)
	}
	if len(launcher.args) != 0 {
		t.Errorf("installer launch args = %v, want none", launcher.args)
	}
	if !exit.called || exit.code != 0 {
		t.Errorf("exit = (%v, %d), want (true, 0)", exit.called, exit.code)
	}
	if len(opener.opened) != 0 {
		t.Errorf("browser opened %v, want nothing", opener.opened)
	}
}

func TestInstallerStrategy_ChecksumVerified(t *testing.T) {
	t.Parallel()

	deps, _, exit, _ := testDeps(t)
	s := &installerStrategy{deps: deps}

	art := ArtifactLocations{
		InstallerURL:    "https://dl.example.com/setup.exe",
		InstallerSHA256: sha256Hex([]byte("artifact-bytes")),
	}
	if err := s.Install(context.Background(), art); err != nil {
		t.Fatalf("unexpected error with matching checksum: %v", err)
	}
	if !exit.called {
		t.Error("expected process hand-off after verified install")
	}
}

func TestInstallerStrategy_ChecksumMismatchIsDownloadFailure(t *testing.T) {
	t.Parallel()

	deps, launcher, exit, _ := testDeps(t)
	s := &installerStrategy{deps: deps}

	art := ArtifactLocations{
		InstallerURL:    "https://dl.example.com/setup.exe",
		InstallerSHA256: sha256Hex([]byte("something else")),
	}
	err := s.Install(context.Background(), art)

	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("error = %v, want DownloadError", err)
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("error = %v, want to wrap ErrChecksumMismatch", err)
	}
	if launcher.calls != 0 {
		t.Error("corrupt artifact must not be launched")
	}
	if exit.called {
		t.Error("process must stay alive after a failed download")
	}
}

func TestInstallerStrategy_DownloadFailure(t *testing.T) {
	t.Parallel()

	deps, _, exit, _ := testDeps(t)
	deps.Fetcher = failingFetcher(errors.New("connection reset"))
	s := &installerStrategy{deps: deps}

	err := s.Install(context.Background(), ArtifactLocations{InstallerURL: "https://x/i.exe"})

	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("error = %v, want DownloadError", err)
	}
	if exit.called {
		t.Error("process must stay alive after a failed download")
	}
}

func TestInstallerStrategy_EmptyPayloadIsWriteFailure(t *testing.T) {
	t.Parallel()

	deps, launcher, exit, _ := testDeps(t)
	deps.Fetcher = staticFetcher(nil)
	s := &installerStrategy{deps: deps}

	err := s.Install(context.Background(), ArtifactLocations{InstallerURL: "https://x/i.exe"})

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("error = %v, want WriteError", err)
	}
	if !errors.Is(err, ErrEmptyArtifact) {
		t.Errorf("error = %v, want to wrap ErrEmptyArtifact", err)
	}
	if launcher.calls != 0 || exit.called {
		t.Error("empty payload must not launch anything or exit the process")
	}

	if _, statErr := os.Stat(filepath.Join(deps.ScratchDir, installerFileName)); !os.IsNotExist(statErr) {
		t.Error("no partial file may be left behind")
	}
}

func TestInstallerStrategy_LaunchFailureFallsBackToBrowser(t *testing.T) {
	t.Parallel()

	deps, launcher, exit, opener := testDeps(t)
	launcher.err = errors.New("blocked by antivirus")
	s := &installerStrategy{deps: deps}

	art := ArtifactLocations{InstallerURL: "https://dl.example.com/setup.exe"}
	err := s.Install(context.Background(), art)

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want LaunchError", err)
	}
	if exit.called {
		t.Error("process must stay alive when the installer failed to start")
	}
	if len(opener.opened) != 1 || opener.opened[0] != art.InstallerURL {
		t.Errorf("browser fallback opened %v, want [%s]", opener.opened, art.InstallerURL)
	}
}

func TestPortableStrategy_HandsOffToCompanionUpdater(t *testing.T) {
	origExecutable := osExecutable
	t.Cleanup(func() { osExecutable = origExecutable })

	exeDir := t.TempDir()
	osExecutable = func() (string, error) { return filepath.Join(exeDir, "quill.exe"), nil }

	deps, launcher, exit, _ := testDeps(t)
	s := &portableStrategy{deps: deps}

	art := ArtifactLocations{PortableURL: "https://dl.example.com/portable.zip"}
	if err := s.Install(context.Background(), art); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	archive := filepath.Join(deps.ScratchDir, portableFileName)
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("portable archive not persisted: %v", err)
	}

	wantUpdater := filepath.Join(exeDir, filepath.FromSlash(updaterRelPath))
	if launcher.path != wantUpdater {
		t.Errorf("launched %q, want %q", launcher.path, wantUpdater)
	}
	if len(launcher.args) != 2 || launcher.args[0] != archive || launcher.args[1] != restartArg {
		t.Errorf("launch args = %v, want [%s %s]", launcher.args, archive, restartArg)
	}
	if !exit.called {
		t.Error("portable hand-off must request process exit after a successful write and launch")
	}
}

func TestPortableStrategy_LaunchFailureKeepsProcessAlive(t *testing.T) {
	origExecutable := osExecutable
	t.Cleanup(func() { osExecutable = origExecutable })
	osExecutable = func() (string, error) { return filepath.Join(t.TempDir(), "quill.exe"), nil }

	deps, launcher, exit, _ := testDeps(t)
	launcher.err = errors.New("updater missing")
	s := &portableStrategy{deps: deps}

	err := s.Install(context.Background(), ArtifactLocations{PortableURL: "https://x/p.zip"})

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want LaunchError", err)
	}
	if exit.called {
		t.Error("process must stay alive when the companion updater failed to start")
	}
}

func TestManualStrategy_OpensInstallerURL(t *testing.T) {
	t.Parallel()

	deps, launcher, exit, opener := testDeps(t)
	deps.Fetcher = fetcherFunc(func(context.Context, string) ([]byte, error) {
		t.Error("manual strategy must not download anything")
		return nil, nil
	})
	s := &manualStrategy{deps: deps}

	art := ArtifactLocations{InstallerURL: "https://dl.example.com/quill.dmg"}
	if err := s.Install(context.Background(), art); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(opener.opened) != 1 || opener.opened[0] != art.InstallerURL {
		t.Errorf("opened %v, want [%s]", opener.opened, art.InstallerURL)
	}
	if launcher.calls != 0 || exit.called {
		t.Error("manual strategy must not launch processes or exit")
	}
}

func TestGuideStrategy_OpensGuideURL(t *testing.T) {
	t.Parallel()

	deps, _, exit, opener := testDeps(t)
	s := &guideStrategy{deps: deps}

	if err := s.Install(context.Background(), ArtifactLocations{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opener.opened) != 1 || opener.opened[0] != deps.GuideURL {
		t.Errorf("opened %v, want [%s]", opener.opened, deps.GuideURL)
	}
	if exit.called {
		t.Error("guide strategy must not exit the process")
	}
}

func TestWriteArtifact_TruncatesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Update.exe")
	if err := os.WriteFile(path, []byte("a much longer previous artifact"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := writeArtifact(path, []byte("new")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}
