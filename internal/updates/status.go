// SPDX-License-Identifier: MPL-2.0

package updates

// Status is the single current phase of the update lifecycle. Exactly one
// value is held at a time; every triggering event maps to exactly one
// resulting status.
type Status int

const (
	// StatusIdle means no check has run yet.
	StatusIdle Status = iota
	// StatusSearching means a metadata check is in flight.
	StatusSearching
	// StatusUpdateAvailable means a release differing from the running
	// version was found.
	StatusUpdateAvailable
	// StatusNoUpdateAvailable means the feed version equals the running one.
	StatusNoUpdateAvailable
	// StatusSearchFailed means the metadata check failed (network error,
	// malformed response, or unsupported-platform payload).
	StatusSearchFailed
	// StatusDownloading means an install artifact download is in flight.
	StatusDownloading
	// StatusDownloadFailed means the artifact download failed.
	StatusDownloadFailed
	// StatusWriteFileFailed means the artifact could not be persisted to the
	// scratch directory.
	StatusWriteFileFailed
	// StatusLaunchFailed means the persisted artifact could not be started.
	// The current process stays alive when this happens.
	StatusLaunchFailed
)

// String returns a stable lowercase name, used in logs and CLI output.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSearching:
		return "searching"
	case StatusUpdateAvailable:
		return "update-available"
	case StatusNoUpdateAvailable:
		return "no-update-available"
	case StatusSearchFailed:
		return "search-failed"
	case StatusDownloading:
		return "downloading"
	case StatusDownloadFailed:
		return "download-failed"
	case StatusWriteFileFailed:
		return "write-file-failed"
	case StatusLaunchFailed:
		return "launch-failed"
	}
	return "unknown"
}

// ShouldShowUpdateAffordance reports whether the UI should keep surfacing
// the update control. Once a search has definitively failed or a download is
// in progress or has failed, the control stays visible so the user can retry
// or at least see the state.
func (s Status) ShouldShowUpdateAffordance() bool {
	switch s {
	case StatusUpdateAvailable,
		StatusSearchFailed,
		StatusDownloading,
		StatusDownloadFailed,
		StatusWriteFileFailed,
		StatusLaunchFailed:
		return true
	default:
		return false
	}
}

// IsError reports whether the status represents a failure.
func (s Status) IsError() bool {
	switch s {
	case StatusSearchFailed, StatusDownloadFailed, StatusWriteFileFailed, StatusLaunchFailed:
		return true
	default:
		return false
	}
}
