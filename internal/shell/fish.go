// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FishAdapter renders and launches fish.
//
// fish evaluates --init-command after the user's config.fish, so the
// fragment already runs last without a generated startup file; no deferral
// marker is needed for this dialect.
type FishAdapter struct{}

// Dialect returns DialectFish.
func (*FishAdapter) Dialect() Dialect { return DialectFish }

// Export renders a fish global-export assignment.
func (*FishAdapter) Export(name, value string) string {
	return fmt.Sprintf("set -gx %s %s", name, quoteFish(value))
}

// ExportExpanding renders an assignment whose value fish still expands.
func (*FishAdapter) ExportExpanding(name, value string) string {
	return fmt.Sprintf("set -gx %s %s", name, quoteExpandFish(value))
}

// Source renders sourcing of a script file.
func (*FishAdapter) Source(path string) string {
	return fmt.Sprintf("source %s", quoteFish(path))
}

// Comment renders a comment line.
func (*FishAdapter) Comment(text string) string {
	return "# " + text
}

// ReturnOnFailure runs body and stops the sourced fragment with body's exit
// status when it fails.
func (*FishAdapter) ReturnOnFailure(body string) string {
	return body + "\n" +
		"set -l _denv_status $status\n" +
		"test $_denv_status -eq 0; or return $_denv_status"
}

// WrapFragment wraps the fragment in an immediately invoked function.
func (*FishAdapter) WrapFragment(body string) string {
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return "function _denv_main\n" + body + "end\n_denv_main\nfunctions -e _denv_main\n"
}

// SubshellCommand builds the fish invocation for subshell mode.
func (*FishAdapter) SubshellCommand(ctx context.Context, fragmentPath string, argv []string, opts SubshellOptions) (*exec.Cmd, error) {
	sh, err := lookShell(DialectFish, opts)
	if err != nil {
		return nil, err
	}

	if len(argv) > 0 {
		script := fmt.Sprintf("source %s; exec $argv", quoteFish(fragmentPath))
		args := append([]string{"-c", script}, argv...)
		return exec.CommandContext(ctx, sh, args...), nil
	}

	init := fmt.Sprintf("source %s", quoteFish(fragmentPath))
	return exec.CommandContext(ctx, sh, "--init-command", init), nil
}
