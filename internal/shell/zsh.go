// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ZshAdapter renders and launches zsh.
//
// Interactive sub-shells are started with ZDOTDIR pointing at a generated
// directory whose .zshrc restores the user's original ZDOTDIR, sources their
// real .zshrc, then the composed fragment. The original ZDOTDIR travels in
// the defer-guard marker so nested activations and the user's own startup
// files observe the true value.
type ZshAdapter struct{}

// Dialect returns DialectZsh.
func (*ZshAdapter) Dialect() Dialect { return DialectZsh }

// Export renders a zsh export statement.
func (*ZshAdapter) Export(name, value string) string {
	return fmt.Sprintf("export %s=%s", name, quotePOSIX(value))
}

// ExportExpanding renders an export whose value zsh still expands.
func (*ZshAdapter) ExportExpanding(name, value string) string {
	return fmt.Sprintf("export %s=%s", name, quoteExpandPOSIX(value))
}

// Source renders sourcing of a script file.
func (*ZshAdapter) Source(path string) string {
	return fmt.Sprintf("source %s", quotePOSIX(path))
}

// Comment renders a comment line.
func (*ZshAdapter) Comment(text string) string {
	return "# " + text
}

// ReturnOnFailure runs body and stops the sourced fragment with body's exit
// status when it fails.
func (*ZshAdapter) ReturnOnFailure(body string) string {
	return body + "\n" +
		"_denv_status=$?\n" +
		`[ "$_denv_status" -eq 0 ] || return "$_denv_status"` + "\n" +
		"unset _denv_status"
}

// WrapFragment wraps the fragment in an immediately invoked function.
func (*ZshAdapter) WrapFragment(body string) string {
	return wrapPOSIXFragment(body)
}

// SubshellCommand builds the zsh invocation for subshell mode.
func (a *ZshAdapter) SubshellCommand(ctx context.Context, fragmentPath string, argv []string, opts SubshellOptions) (*exec.Cmd, error) {
	sh, err := lookShell(DialectZsh, opts)
	if err != nil {
		return nil, err
	}

	if len(argv) > 0 {
		script := fmt.Sprintf("source %s\nexec \"$@\"", quotePOSIX(fragmentPath))
		args := append([]string{"-c", script, "zsh"}, argv...)
		return exec.CommandContext(ctx, sh, args...), nil
	}

	if err := a.writeZDotDir(fragmentPath, opts.ScratchDir); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, sh, "-i")
	cmd.Env = append(os.Environ(),
		"ZDOTDIR="+opts.ScratchDir,
		fmt.Sprintf("%s=zsh:%s", DeferGuardVar, os.Getenv("ZDOTDIR")),
	)
	return cmd, nil
}

// writeZDotDir populates the scratch ZDOTDIR with a .zshrc that hands back
// control to the user's own startup chain before sourcing the fragment.
func (*ZshAdapter) writeZDotDir(fragmentPath, scratchDir string) error {
	rc := fmt.Sprintf(`_denv_orig="${%[1]s#zsh:}"
if [ -n "$_denv_orig" ]; then
  export ZDOTDIR="$_denv_orig"
else
  unset ZDOTDIR
fi
unset %[1]s
_denv_user_rc="${ZDOTDIR:-$HOME}/.zshrc"
if [ -f "$_denv_user_rc" ]; then
  source "$_denv_user_rc"
fi
unset _denv_orig _denv_user_rc
source %[2]s
`, DeferGuardVar, quotePOSIX(fragmentPath))

	path := filepath.Join(scratchDir, ".zshrc")
	if err := os.WriteFile(path, []byte(rc), 0o600); err != nil {
		return fmt.Errorf("failed to write generated zshrc: %w", err)
	}
	return nil
}
