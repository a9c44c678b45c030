// SPDX-License-Identifier: MPL-2.0

// Package shell provides per-dialect adapters that render activation script
// fragments and launch sub-shells for the supported shell dialects.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Supported dialect identifiers.
const (
	DialectBash Dialect = "bash"
	DialectZsh  Dialect = "zsh"
	DialectFish Dialect = "fish"
)

// DeferGuardVar is the inherited marker used by adapters to detect that the
// startup-file sourcing chain has already been deferred once in this lineage.
// For zsh it also carries the user's original ZDOTDIR so nested activations
// and the user's own startup files observe the true value.
const DeferGuardVar = "_DENV_DEFER_GUARD"

type (
	// Dialect identifies a supported command-shell interpreter.
	Dialect string

	// SubshellOptions configures how an adapter launches a sub-shell.
	SubshellOptions struct {
		// Interactive requests an interactive shell session rather than
		// running a trailing command.
		Interactive bool
		// ScratchDir is a private directory the adapter may populate with
		// generated startup files. It lives until the sub-shell exits.
		ScratchDir string
		// ShellPath overrides the interpreter binary. When empty the adapter
		// resolves the dialect name on PATH.
		ShellPath string
	}

	// Adapter renders dialect-specific script text and knows how to launch
	// that dialect with the user's own startup files deferred until the
	// composed fragment has run.
	Adapter interface {
		// Dialect returns the dialect this adapter serves.
		Dialect() Dialect

		// Export renders an assignment of value to name, visible to child
		// processes of the target shell. The value is spliced literally; the
		// shell performs no expansion on it.
		Export(name, value string) string

		// ExportExpanding renders an assignment whose value the target shell
		// still expands, so a manifest variable may reference variables
		// declared before it.
		ExportExpanding(name, value string) string

		// Source renders sourcing of the script at path.
		Source(path string) string

		// Comment renders a comment line.
		Comment(text string) string

		// ReturnOnFailure renders a guard that stops fragment execution with
		// the given command's exit status when it fails. body is executed
		// first; the rendered text includes it.
		ReturnOnFailure(body string) string

		// WrapFragment wraps a complete fragment in a function and invokes
		// it. Inside a function `return` is always legal, so the abort guard
		// behaves the same whether the fragment is sourced or eval'd.
		WrapFragment(body string) string

		// SubshellCommand builds the command that launches the shell with the
		// composed fragment at fragmentPath sourced before control is handed
		// to the interactive prompt or to argv.
		SubshellCommand(ctx context.Context, fragmentPath string, argv []string, opts SubshellOptions) (*exec.Cmd, error)
	}

	// Registry holds the adapters for all supported dialects.
	Registry struct {
		adapters map[Dialect]Adapter
	}
)

// NewRegistry creates a registry pre-populated with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[Dialect]Adapter)}
	r.Register(&BashAdapter{})
	r.Register(&ZshAdapter{})
	r.Register(&FishAdapter{})
	return r
}

// Register adds an adapter to the registry, replacing any previous adapter
// for the same dialect.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Dialect()] = a
}

// Get returns the adapter for the given dialect.
func (r *Registry) Get(d Dialect) (Adapter, error) {
	a, ok := r.adapters[d]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for shell '%s'", d)
	}
	return a, nil
}

// Supported returns whether the dialect has a registered adapter.
func (r *Registry) Supported(d Dialect) bool {
	_, ok := r.adapters[d]
	return ok
}

// Detect resolves the dialect for this invocation. Precedence: the explicit
// override flag, the DENV_SHELL variable, the invoking user's SHELL, and
// finally bash. The result is not guaranteed to have an adapter; callers
// degrade to the dialect-neutral fallback when it does not.
func Detect(override string, getenv func(string) string) Dialect {
	if override != "" {
		return normalize(override)
	}
	if v := getenv("DENV_SHELL"); v != "" {
		return normalize(v)
	}
	if v := getenv("SHELL"); v != "" {
		return normalize(v)
	}
	return DialectBash
}

// normalize reduces a shell path or name to a dialect identifier.
func normalize(name string) Dialect {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, ".exe")
	// Versioned interpreters (zsh-5.9, bash5) still map to their dialect.
	for _, d := range []Dialect{DialectBash, DialectZsh, DialectFish} {
		if base == string(d) || strings.HasPrefix(base, string(d)) {
			return d
		}
	}
	return Dialect(base)
}

// wrapPOSIXFragment is the bash/zsh WrapFragment body: a throwaway function
// invoked and removed immediately.
func wrapPOSIXFragment(body string) string {
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return "_denv_main() {\n" + body + "}\n_denv_main\nunset -f _denv_main\n"
}

// lookShell resolves the interpreter binary for a dialect, honoring an
// explicit override first, then the user's SHELL when it matches the
// dialect, then PATH lookup.
func lookShell(d Dialect, opts SubshellOptions) (string, error) {
	if opts.ShellPath != "" {
		return opts.ShellPath, nil
	}
	if v := os.Getenv("SHELL"); v != "" && normalize(v) == d {
		return v, nil
	}
	path, err := exec.LookPath(string(d))
	if err != nil {
		return "", fmt.Errorf("shell '%s' not found on PATH: %w", d, err)
	}
	return path, nil
}
