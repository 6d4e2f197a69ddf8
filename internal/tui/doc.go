// SPDX-License-Identifier: MPL-2.0

// Package tui wraps charmbracelet/huh behind a small prompt API so command
// handlers never deal with form plumbing directly. Prompts degrade to
// accessible mode when stdin is not a terminal or ACCESSIBLE is set.
package tui
