// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/denvtool/denv/internal/activate"
	"github.com/denvtool/denv/internal/config"
	"github.com/denvtool/denv/internal/issue"
)

var (
	activateDir        string
	activateShell      string
	activateTurbo      bool
	activateNoProfiles bool
	activatePrint      bool

	activateCmd = &cobra.Command{
		Use:   "activate [flags] [-- command [args...]]",
		Short: "Activate an environment in a shell or command",
		Long: `Activate a built environment.

Without a trailing command, denv drops into an interactive sub-shell with
the environment active, or prints the activation script when stdout is not
a terminal (for eval'ing into the current shell). With a trailing command,
the command runs inside the environment and its exit code is propagated.

In turbo mode no shell is involved at all: variables are exported and the
on-activate hook runs in-process, then denv replaces itself with the
trailing command.`,
		RunE: runActivate,
	}
)

func init() {
	activateCmd.Flags().StringVarP(&activateDir, "dir", "d", "", "project or environment directory (default: nearest ancestor with a built environment)")
	activateCmd.Flags().StringVarP(&activateShell, "shell", "s", "", "shell dialect to activate for (bash, zsh, fish)")
	activateCmd.Flags().BoolVar(&activateTurbo, "turbo", false, "exec the trailing command directly, without a shell")
	activateCmd.Flags().BoolVar(&activateNoProfiles, "no-profiles", false, "skip profile scripts")
	activateCmd.Flags().BoolVar(&activatePrint, "print", false, "print the activation script instead of spawning a shell")
}

func runActivate(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	shellOverride := activateShell
	if shellOverride == "" {
		shellOverride = cfg.Shell
	}

	ctx, err := activate.Build(activate.Options{
		Dir:              activateDir,
		Shell:            shellOverride,
		Turbo:            activateTurbo,
		NoProfiles:       activateNoProfiles || cfg.NoProfiles,
		ForcePrint:       activatePrint,
		Command:          args,
		HookAbortDefault: cfg.HookAbortOnFailure,
	})
	if err != nil {
		if activate.IsNoEnvironment(err) {
			renderGuidance(issue.NoEnvironmentFoundId)
		}
		return &ExitError{Code: 1, Err: err}
	}

	if ctx.Adapter == nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+
			fmt.Sprintf("shell '%s' is not supported; emitting plain variable exports only", ctx.Dialect))
		renderGuidance(issue.UnsupportedShellId)
	}

	code, err := activate.Run(cmd.Context(), ctx, os.Stdout)
	if err != nil {
		return &ExitError{Code: code, Err: err}
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// renderGuidance prints the guidance page for a known failure mode to stderr.
func renderGuidance(id issue.Id) {
	g := issue.Get(id)
	if g == nil {
		return
	}
	rendered, err := g.Render("dark")
	if err != nil {
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}
