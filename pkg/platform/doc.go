// SPDX-License-Identifier: MPL-2.0

// Package platform answers the questions the update orchestrator asks about
// its environment: which OS family this is, whether the binary runs in
// portable mode, and whether a sandboxed distribution channel (Flatpak,
// Snap) manages updates on the application's behalf.
package platform
