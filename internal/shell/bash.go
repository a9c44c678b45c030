// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// BashAdapter renders and launches bash.
//
// Interactive sub-shells are started with --rcfile pointing at a generated rc
// that first sources the user's own ~/.bashrc (guarded so a re-entrant
// activation in that file cannot loop), then the composed fragment. This
// keeps the user's startup chain intact while guaranteeing the fragment runs
// last.
type BashAdapter struct{}

// Dialect returns DialectBash.
func (*BashAdapter) Dialect() Dialect { return DialectBash }

// Export renders a bash export statement.
func (*BashAdapter) Export(name, value string) string {
	return fmt.Sprintf("export %s=%s", name, quotePOSIX(value))
}

// ExportExpanding renders an export whose value bash still expands.
func (*BashAdapter) ExportExpanding(name, value string) string {
	return fmt.Sprintf("export %s=%s", name, quoteExpandPOSIX(value))
}

// Source renders sourcing of a script file.
func (*BashAdapter) Source(path string) string {
	return fmt.Sprintf("source %s", quotePOSIX(path))
}

// Comment renders a comment line.
func (*BashAdapter) Comment(text string) string {
	return "# " + text
}

// ReturnOnFailure runs body and stops the sourced fragment with body's exit
// status when it fails.
func (*BashAdapter) ReturnOnFailure(body string) string {
	return body + "\n" +
		"_denv_status=$?\n" +
		`[ "$_denv_status" -eq 0 ] || return "$_denv_status"` + "\n" +
		"unset _denv_status"
}

// WrapFragment wraps the fragment in an immediately invoked function.
func (*BashAdapter) WrapFragment(body string) string {
	return wrapPOSIXFragment(body)
}

// SubshellCommand builds the bash invocation for subshell mode.
func (a *BashAdapter) SubshellCommand(ctx context.Context, fragmentPath string, argv []string, opts SubshellOptions) (*exec.Cmd, error) {
	sh, err := lookShell(DialectBash, opts)
	if err != nil {
		return nil, err
	}

	if len(argv) > 0 {
		// Command mode: source the fragment, then replace the shell with the
		// trailing command so its exit status propagates verbatim.
		script := fmt.Sprintf("source %s\nexec \"$@\"", quotePOSIX(fragmentPath))
		args := append([]string{"-c", script, "bash"}, argv...)
		return exec.CommandContext(ctx, sh, args...), nil
	}

	rc, err := a.writeRCFile(fragmentPath, opts.ScratchDir)
	if err != nil {
		return nil, err
	}
	// -i is explicit: without it bash ignores --rcfile when stdin is not a
	// terminal, and the fragment would never source. Bash requires GNU long
	// options to precede single-character options.
	return exec.CommandContext(ctx, sh, "--noprofile", "--rcfile", rc, "-i"), nil
}

// writeRCFile generates the interactive rc that defers the user's own
// startup file until before the fragment.
func (*BashAdapter) writeRCFile(fragmentPath, scratchDir string) (string, error) {
	rc := fmt.Sprintf(`if [ -z "${%[1]s:-}" ]; then
  export %[1]s=bash
  if [ -f "$HOME/.bashrc" ]; then
    source "$HOME/.bashrc"
  fi
  unset %[1]s
fi
source %[2]s
`, DeferGuardVar, quotePOSIX(fragmentPath))

	path := filepath.Join(scratchDir, ".bashrc")
	if err := os.WriteFile(path, []byte(rc), 0o600); err != nil {
		return "", fmt.Errorf("failed to write generated bashrc: %w", err)
	}
	return path, nil
}
