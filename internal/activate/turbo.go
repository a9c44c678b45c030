// SPDX-License-Identifier: MPL-2.0

package activate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/denvtool/denv/internal/issue"
	"github.com/denvtool/denv/internal/shell"
)

// Exit codes for turbo failures, kept distinct from a normal command failure.
const (
	// exitUsage signals a turbo invocation with no trailing command.
	exitUsage = 2
	// exitNotFound signals that the trailing command is not a real
	// executable (e.g., a shell built-in); there is no shell to interpret it.
	exitNotFound = 127
	// exitNotExecutable signals that the process image replacement itself
	// failed.
	exitNotExecutable = 126
)

// runTurbo performs a turbo-mode activation: manifest variables are applied
// and the hook (when not already completed for this lineage) is executed by
// an embedded POSIX interpreter inside this process, then the process image
// is replaced with the trailing command. No shell interpreter is ever
// spawned.
func runTurbo(ctx context.Context, c *Context) (int, error) {
	if len(c.Command) == 0 {
		return exitUsage, issue.NewErrorContext().
			WithOperation("activate in turbo mode").
			WithSuggestion("Give a command to run: denv activate --turbo -- <command> [args...]").
			Wrap(errors.New("turbo mode requires a trailing command")).
			BuildError()
	}

	decision := c.Decide()

	overrides, hookStatus, err := evalInProcess(ctx, turboScript(c, decision), c.WorkDir)
	if err != nil {
		return 1, issue.WrapWithOperation(err, "run activation hook")
	}
	if hookStatus != 0 {
		if c.HookAbort {
			return hookStatus, nil
		}
		log.Debug("hook exited non-zero, continuing", "status", hookStatus)
	}

	next := c.NextLineage(true)
	encoded, err := next.Encode()
	if err != nil {
		return 1, issue.WrapWithOperation(err, "encode lineage state")
	}
	overrides[LineageVar] = encoded
	overrides[EnvVar] = c.Env.Path

	environ := overrideEnviron(os.Environ(), overrides)

	path, err := exec.LookPath(c.Command[0])
	if err != nil {
		return exitNotFound, issue.NewErrorContext().
			WithOperation("exec command in turbo mode").
			WithResource(c.Command[0]).
			WithSuggestion("Turbo mode needs a real executable; shell built-ins cannot run without a shell").
			WithSuggestion("Drop --turbo to run the command in a sub-shell").
			Wrap(err).
			BuildError()
	}

	log.Debug("replacing process image", "path", path)
	if err := unix.Exec(path, c.Command, environ); err != nil {
		return exitNotExecutable, issue.NewErrorContext().
			WithOperation("exec command in turbo mode").
			WithResource(path).
			Wrap(err).
			BuildError()
	}
	return 0, nil // unreachable: Exec does not return on success
}

// turboScript renders the POSIX script the embedded interpreter evaluates:
// manifest variable exports and the hook body, each only when the guard says
// this lineage has not completed them. Re-exporting declared values on a
// nested activation would revert mutations the hook made.
func turboScript(c *Context, decision Decision) string {
	posix := &shell.BashAdapter{}
	var script strings.Builder
	if decision.RunVars {
		for _, v := range c.Manifest.Vars {
			script.WriteString(posix.ExportExpanding(v.Name, v.Value))
			script.WriteByte('\n')
		}
	}
	if decision.RunHook {
		script.WriteString(c.Manifest.Hook)
		script.WriteByte('\n')
	}
	return script.String()
}

// evalInProcess runs a POSIX script with the embedded interpreter and returns
// the variables it exported plus its exit status. Script failures are not an
// engine error; the status is reported for the caller's policy to judge.
func evalInProcess(ctx context.Context, script, workDir string) (map[string]string, int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "activate")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse hook script: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create interpreter: %w", err)
	}

	status := 0
	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			status = int(exitStatus)
		} else {
			return nil, 0, fmt.Errorf("hook execution failed: %w", err)
		}
	}

	overrides := make(map[string]string)
	for name, v := range runner.Vars {
		if v.Exported {
			overrides[name] = v.String()
		}
	}
	return overrides, status, nil
}

// overrideEnviron applies overrides onto an environ slice, replacing existing
// entries and appending new ones in deterministic order.
func overrideEnviron(environ []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return environ
	}
	seen := make(map[string]bool, len(overrides))
	out := make([]string, 0, len(environ)+len(overrides))
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if ok {
			if v, hit := overrides[name]; hit {
				out = append(out, name+"="+v)
				seen[name] = true
				continue
			}
		}
		out = append(out, kv)
	}
	missing := make([]string, 0, len(overrides))
	for name := range overrides {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		out = append(out, name+"="+overrides[name])
	}
	return out
}
