// SPDX-License-Identifier: MPL-2.0

// Package activate implements the activation orchestration engine: deciding
// which lifecycle scripts run for an invocation, in what order and how many
// times, and how control is handed to the target shell or command.
package activate

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/denvtool/denv/internal/envdir"
	"github.com/denvtool/denv/internal/issue"
	"github.com/denvtool/denv/internal/manifest"
	"github.com/denvtool/denv/internal/shell"
)

type (
	// Options are the raw inputs of one invocation.
	Options struct {
		// Dir is the explicit target directory; empty means resolve from
		// the working directory's nearest environment ancestor.
		Dir string
		// Shell is the explicit dialect override.
		Shell string
		// Turbo forces turbo mode (also enabled by DENV_TURBO).
		Turbo bool
		// NoProfiles suppresses profiles (also enabled by DENV_NO_PROFILES).
		NoProfiles bool
		// ForcePrint forces print mode even on a terminal.
		ForcePrint bool
		// Command is the optional trailing command vector.
		Command []string
		// WorkDir is the caller's working directory; empty means os.Getwd.
		WorkDir string
		// HookAbortDefault applies when the manifest does not set
		// options.hook-abort-on-failure itself.
		HookAbortDefault bool

		// Getenv reads the inherited environment; defaults to os.Getenv.
		Getenv func(string) string
		// Interactive overrides terminal detection (tests).
		Interactive *bool
		// Registry supplies the dialect adapters; defaults to the built-ins.
		Registry *shell.Registry
	}

	// Context is the immutable record describing one invocation. It is
	// created once at the start of an invocation and never mutated.
	Context struct {
		// Env is the opened environment descriptor. Env.Path is the
		// environment identifier.
		Env      *envdir.Descriptor
		Manifest *manifest.Fragment

		Dialect shell.Dialect
		// Adapter is nil when the dialect has no adapter; dispatch then
		// degrades to the dialect-neutral variable-export script.
		Adapter shell.Adapter

		Interactive bool
		Turbo       bool
		NoProfiles  bool
		ForcePrint  bool
		HookAbort   bool

		Command []string
		WorkDir string

		// Lineage is the inherited activation state, read exactly once here.
		Lineage Lineage
	}
)

// Build assembles the activation context for one invocation. It is a pure
// read of its inputs: no environment mutation, no process side effects.
func Build(opts Options) (*Context, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, issue.WrapWithOperation(err, "resolve working directory")
		}
		workDir = wd
	}

	envPath, err := envdir.Resolve(workDir, opts.Dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve environment").
			WithResource(firstNonEmpty(opts.Dir, workDir)).
			WithSuggestion("Build the environment first").
			WithSuggestion("Or pass --dir pointing at a project with a built environment").
			Wrap(err).
			BuildError()
	}

	desc, err := envdir.Open(envPath)
	if err != nil {
		return nil, issue.WrapWithOperation(err, "open environment")
	}

	frag, err := desc.Manifest()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse environment manifest").
			WithResource(desc.Path).
			WithSuggestion("Rebuild the environment").
			Wrap(err).
			BuildError()
	}

	registry := opts.Registry
	if registry == nil {
		registry = shell.NewRegistry()
	}
	dialect := shell.Detect(opts.Shell, getenv)
	adapter, adapterErr := registry.Get(dialect)
	if adapterErr != nil {
		// Degraded path: dispatch emits bare exports for unknown dialects.
		adapter = nil
	}

	interactive := false
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	} else {
		interactive = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	ctx := &Context{
		Env:         desc,
		Manifest:    frag,
		Dialect:     dialect,
		Adapter:     adapter,
		Interactive: interactive,
		Turbo:       opts.Turbo || truthy(getenv(TurboVar)),
		NoProfiles:  opts.NoProfiles || truthy(getenv(NoProfilesVar)),
		ForcePrint:  opts.ForcePrint,
		HookAbort:   frag.HookAbort(opts.HookAbortDefault),
		Command:     opts.Command,
		WorkDir:     workDir,
		Lineage:     ParseLineage(getenv(LineageVar)),
	}

	log.Debug("activation context built",
		"env", desc.Path,
		"dialect", dialect,
		"adapter", adapter != nil,
		"interactive", ctx.Interactive,
		"turbo", ctx.Turbo,
		"active", ctx.Lineage.IsActive(desc.Path),
		"hook_done", ctx.Lineage.HookDone(desc.Path),
	)
	return ctx, nil
}

// IsNoEnvironment reports whether err means no environment was found.
func IsNoEnvironment(err error) bool {
	return errors.Is(err, envdir.ErrNoEnvironment)
}

func truthy(v string) bool {
	switch v {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
