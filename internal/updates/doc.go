// SPDX-License-Identifier: MPL-2.0

// Package updates implements self-update orchestration for quill. It decides
// whether a newer release exists, reports that through a status enumeration,
// and on request downloads and launches the matching install artifact.
//
// The package is organized into five concerns:
//   - status.go: the Status enumeration and its UI-facing helpers
//   - version.go: semantic-version comparison (downgrade detection)
//   - feed.go: release metadata fetch and platform-conditional parsing
//   - strategy.go: platform install strategies (installer, portable, manual, guide)
//   - manager.go: the state machine that owns status and drives the above
package updates
