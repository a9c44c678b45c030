// SPDX-License-Identifier: MPL-2.0

package activate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/denvtool/denv/internal/issue"
	"github.com/denvtool/denv/internal/shell"
)

// Terminal dispatch modes. Selected once per invocation, never re-evaluated
// mid-flight.
const (
	// ModePrint writes the composed script to stdout for the caller to
	// evaluate into its current shell.
	ModePrint Mode = iota
	// ModeSubshell spawns the dialect's interpreter pre-seeded with the
	// composed fragment.
	ModeSubshell
	// ModeTurbo replaces the process image with the trailing command,
	// never invoking a shell interpreter.
	ModeTurbo
)

// Mode is a terminal dispatch behavior.
type Mode int

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePrint:
		return "print"
	case ModeSubshell:
		return "subshell"
	case ModeTurbo:
		return "turbo"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SelectMode picks the terminal behavior for the context.
func SelectMode(c *Context) Mode {
	switch {
	case c.Turbo:
		return ModeTurbo
	case c.Adapter == nil:
		// Degraded: no adapter means no sub-shell to spawn; bare exports only.
		return ModePrint
	case c.ForcePrint:
		return ModePrint
	case len(c.Command) > 0:
		return ModeSubshell
	case c.Interactive:
		return ModeSubshell
	default:
		return ModePrint
	}
}

// Run executes the selected dispatch mode and returns the process exit code.
// In subshell and turbo command modes the trailing command's exit code is
// propagated verbatim.
func Run(ctx context.Context, c *Context, stdout io.Writer) (int, error) {
	mode := SelectMode(c)
	log.Debug("dispatch selected", "mode", mode)

	switch mode {
	case ModeTurbo:
		return runTurbo(ctx, c)
	case ModeSubshell:
		return runSubshell(ctx, c)
	default:
		if c.Adapter == nil && len(c.Command) > 0 {
			log.Warn("shell has no adapter; trailing command was not run",
				"shell", c.Dialect, "command", c.Command[0])
		}
		return runPrint(c, stdout)
	}
}

// runPrint composes the fragment and writes it to stdout. This is how
// activation modifies the *current* shell without this process persisting:
// the caller evaluates the output.
func runPrint(c *Context, stdout io.Writer) (int, error) {
	script, _, err := Compose(c)
	if err != nil {
		return 1, err
	}
	if _, err := io.WriteString(stdout, script); err != nil {
		return 1, issue.WrapWithOperation(err, "write activation script")
	}
	return 0, nil
}

// runSubshell launches the dialect's interpreter pre-seeded with the composed
// fragment and blocks until the shell or trailing command exits.
func runSubshell(ctx context.Context, c *Context) (int, error) {
	cmd, cleanup, err := buildSubshellCmd(ctx, c)
	if err != nil {
		return 1, err
	}
	defer cleanup()

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, issue.WrapWithOperation(err, "run sub-shell")
	}
	return 0, nil
}

// buildSubshellCmd composes the fragment, writes it to a private scratch
// directory, and builds the launch command. The next lineage state is placed
// in the spawn environment too, not just in the fragment: the adapters defer
// the fragment until after the user's startup files, and a re-entrant engine
// invocation from one of those files must already see this activation's
// guard or it would run the hook a second time.
func buildSubshellCmd(ctx context.Context, c *Context) (*exec.Cmd, func(), error) {
	script, next, err := Compose(c)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := next.Encode()
	if err != nil {
		return nil, nil, issue.WrapWithOperation(err, "encode lineage state")
	}

	scratch, err := os.MkdirTemp("", "denv-activate-*")
	if err != nil {
		return nil, nil, issue.WrapWithOperation(err, "create activation scratch directory")
	}
	cleanup := func() { os.RemoveAll(scratch) }

	fragment := filepath.Join(scratch, "activate."+string(c.Dialect))
	if err := os.WriteFile(fragment, []byte(script), 0o600); err != nil {
		cleanup()
		return nil, nil, issue.WrapWithOperation(err, "write activation fragment")
	}

	cmd, err := c.Adapter.SubshellCommand(ctx, fragment, c.Command, shell.SubshellOptions{
		Interactive: len(c.Command) == 0,
		ScratchDir:  scratch,
	})
	if err != nil {
		cleanup()
		return nil, nil, issue.NewErrorContext().
			WithOperation("launch sub-shell").
			WithResource(string(c.Dialect)).
			WithSuggestion("Install the shell or select another with --shell").
			Wrap(err).
			BuildError()
	}

	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}
	cmd.Env = overrideEnviron(base, map[string]string{
		LineageVar: encoded,
		EnvVar:     c.Env.Path,
		PromptVar:  strings.Join(next.Names(), " "),
	})
	cmd.Dir = c.WorkDir
	return cmd, cleanup, nil
}
