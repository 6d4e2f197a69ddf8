// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled by user")

type (
	// ConfirmOptions configures a yes/no prompt.
	ConfirmOptions struct {
		// Title is the question to display.
		Title string
		// Description provides additional context below the title.
		Description string
		// Affirmative is the text for the affirmative option (default: "Yes").
		Affirmative string
		// Negative is the text for the negative option (default: "No").
		Negative string
		// Default is the preselected answer.
		Default bool
		// Accessible renders the prompt as a plain text question for screen
		// readers and non-TTY input.
		Accessible bool
	}
)

// normalized fills in the option defaults.
func (o ConfirmOptions) normalized() ConfirmOptions {
	if o.Affirmative == "" {
		o.Affirmative = "Yes"
	}
	if o.Negative == "" {
		o.Negative = "No"
	}
	return o
}

// Confirm prompts the user with a yes/no question and blocks until they
// answer. Aborting the prompt returns ErrCancelled.
func Confirm(opts ConfirmOptions) (bool, error) {
	opts = opts.normalized()
	answer := opts.Default

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(opts.Title).
				Description(opts.Description).
				Affirmative(opts.Affirmative).
				Negative(opts.Negative).
				Value(&answer),
		),
	).WithAccessible(opts.Accessible || DefaultAccessible())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, err
	}
	return answer, nil
}

// DefaultAccessible reports whether prompts should run in accessible mode:
// stdin is not a terminal, or the ACCESSIBLE environment variable is set.
func DefaultAccessible() bool {
	return !term.IsTerminal(int(os.Stdin.Fd())) || os.Getenv("ACCESSIBLE") != ""
}
