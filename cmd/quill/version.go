// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCommand creates the `quill version` command with full build
// information, beyond the one-liner the --version flag prints.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("quill")+" "+getVersionString())
			fmt.Fprintf(out, "  commit:   %s\n", Commit)
			fmt.Fprintf(out, "  built:    %s\n", BuildDate)
			fmt.Fprintf(out, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if isNightlyBuild() {
				fmt.Fprintln(out, "  channel:  nightly")
			}
		},
	}
}
