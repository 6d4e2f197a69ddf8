// SPDX-License-Identifier: MPL-2.0

// quill is the desktop chat client companion CLI.
package main

import cmd "github.com/quillchat/quill/cmd/quill"

func main() {
	cmd.Execute()
}
