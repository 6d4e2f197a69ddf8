// SPDX-License-Identifier: MPL-2.0

package config

// Test overrides. os.UserHomeDir() doesn't reliably respect the HOME
// environment variable on all platforms (e.g., macOS in CI), so tests point
// these at temp directories instead.
var (
	configDirOverride      string
	dataDirOverride        string
	configFilePathOverride string
)

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
	dataDirOverride = ""
	configFilePathOverride = ""
}

// SetConfigDirOverride sets a custom config directory path, bypassing the
// platform defaults. Primarily intended for testing.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// SetDataDirOverride sets a custom data directory path. Primarily intended
// for testing.
func SetDataDirOverride(dir string) {
	dataDirOverride = dir
}

// SetConfigFilePathOverride points Load at an explicit config file, as set
// by the --config CLI flag.
func SetConfigFilePathOverride(path string) {
	configFilePathOverride = path
}
