// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsSupportedOS reports whether the given GOOS value is one of the OS
// families quill ships release artifacts for. Update checks are skipped
// entirely on anything else.
func IsSupportedOS(goos string) bool {
	switch goos {
	case Windows, Darwin, Linux:
		return true
	default:
		return false
	}
}
