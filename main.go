// SPDX-License-Identifier: MPL-2.0

// denv activates built software environments in any shell.
package main

import cmd "github.com/denvtool/denv/cmd/denv"

func main() {
	cmd.Execute()
}
