// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// portableMarker is the filename that, when present next to the executable,
// flags a portable (no-installer) deployment.
const portableMarker = "portable"

// portableEnv overrides marker detection; any non-empty value enables
// portable mode. Useful for development and for launcher scripts.
const portableEnv = "QUILL_PORTABLE"

//nolint:gochecknoglobals // Test seam for os.Executable().
var osExecutable = os.Executable

// Identity describes the running binary's relationship to the update
// machinery. It is probed once at startup and read-only afterwards.
type Identity struct {
	OS       string      // runtime.GOOS value
	Portable bool        // portable deployment (no system installer)
	Nightly  bool        // nightly build, updates via CI artifacts only
	Sandbox  SandboxType // distribution sandbox, if any
}

// Probe builds the Identity for the current process. The nightly flag comes
// from build metadata and is passed in by the composition root.
func Probe(nightly bool) Identity {
	return Identity{
		OS:       runtime.GOOS,
		Portable: detectPortableFrom(os.Getenv, statFile),
		Nightly:  nightly,
		Sandbox:  DetectSandbox(),
	}
}

// OSSupported reports whether this OS family has release artifacts at all.
func (id Identity) OSSupported() bool {
	return IsSupportedOS(id.OS)
}

// ChannelManaged reports whether the distribution channel owns the upgrade
// lifecycle (e.g. Flatpak or Snap stores). When true the orchestrator must
// never check for or install updates itself.
func (id Identity) ChannelManaged() bool {
	return id.Sandbox != SandboxNone
}

// detectPortableFrom checks the portable-mode indicators using the provided
// lookup functions, keeping the detection testable without touching the real
// executable path.
func detectPortableFrom(lookupEnv func(string) string, statFile func(string) error) bool {
	if lookupEnv(portableEnv) != "" {
		return true
	}

	exe, err := osExecutable()
	if err != nil {
		return false
	}

	return statFile(filepath.Join(filepath.Dir(exe), portableMarker)) == nil
}
