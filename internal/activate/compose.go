// SPDX-License-Identifier: MPL-2.0

package activate

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/denvtool/denv/internal/issue"
	"github.com/denvtool/denv/internal/shell"
)

// Decision is the recursion guard's answer for one invocation: which
// lifecycle steps run this time.
type Decision struct {
	// RunVars is true when manifest variables are exported this activation.
	// Vars and hook are gated together: once a lineage records them as done,
	// re-exporting the declared values would revert mutations the hook made.
	RunVars bool
	// RunHook is true when the manifest has a hook and this lineage has not
	// completed it yet. Hook execution is idempotent once per lineage.
	RunHook bool
	// RunProfiles is true when profile scripts run this activation. Profiles
	// are re-run on every activation, including nested ones, unless globally
	// suppressed or in turbo mode.
	RunProfiles bool
}

// Decide applies the guard policy to the context.
func (c *Context) Decide() Decision {
	done := c.Lineage.HookDone(c.Env.Path)
	d := Decision{
		RunVars:     !done,
		RunHook:     c.Manifest.HasHook() && !done,
		RunProfiles: !c.Turbo && !c.NoProfiles,
	}
	log.Debug("guard decision", "run_vars", d.RunVars, "run_hook", d.RunHook, "run_profiles", d.RunProfiles)
	return d
}

// NextLineage computes the lineage state descendants of this activation
// inherit. hookCompleted records whether the variable-export/hook step was
// performed (now or previously); the degraded neutral path passes false so a
// later activation with a real adapter still runs the hook.
func (c *Context) NextLineage(hookCompleted bool) Lineage {
	return c.Lineage.WithActivated(LineageEntry{
		ID:           c.Env.Path,
		Name:         c.Env.Meta.Name,
		ActivationID: uuid.NewString(),
		HookDone:     hookCompleted,
	})
}

// Compose renders the activation fragment for the context's dialect and
// returns it along with the lineage state it publishes. The engine's
// contract ends at composing and ordering: hook and profile bodies are
// spliced verbatim and their failures surface through the target shell.
func Compose(c *Context) (string, Lineage, error) {
	if c.Adapter == nil {
		return composeNeutral(c)
	}

	decision := c.Decide()
	next := c.NextLineage(true)
	encoded, err := next.Encode()
	if err != nil {
		return "", Lineage{}, issue.WrapWithOperation(err, "encode lineage state")
	}

	a := c.Adapter
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(a.Comment("Generated by denv for environment '" + c.Env.Meta.Name + "'. Do not edit."))

	if path, ok := c.Env.BootstrapScript(string(c.Dialect)); ok {
		line(a.Source(path))
	}

	// Variables first: hooks commonly branch on manifest-declared variables.
	// Expanding quotes let a later entry reference an earlier one. Skipped
	// together with the hook on re-activation: the hook may have overwritten
	// a declared value, and that mutation must survive nesting.
	if decision.RunVars {
		for _, v := range c.Manifest.Vars {
			line(a.ExportExpanding(v.Name, v.Value))
		}
	}

	if path, ok := c.Env.PathSetupScript(); ok {
		line(a.Source(path))
	}

	// The lineage marker is published before the hook so a re-entrant
	// invocation from inside the hook or a user startup file sees this
	// environment as active and degrades to a no-op for vars and hook.
	line(a.Export(LineageVar, encoded))
	line(a.Export(EnvVar, c.Env.Path))
	line(a.Export(PromptVar, strings.Join(next.Names(), " ")))

	if decision.RunHook {
		if c.HookAbort {
			line(a.ReturnOnFailure(c.Manifest.Hook))
		} else {
			line(c.Manifest.Hook)
		}
	}

	if decision.RunProfiles {
		if body, ok := c.Manifest.Profile("common"); ok {
			line(body)
		}
		if body, ok := c.Manifest.Profile(string(c.Dialect)); ok {
			line(body)
		}
		if c.Interactive {
			if path, ok := c.Env.PromptScript(); ok {
				line(a.Source(path))
			}
		}
	}

	// Function-wrapped so the abort guard's return is valid under both
	// `source` and `eval "$(denv activate --print)"`.
	return a.WrapFragment(b.String()), next, nil
}

// composeNeutral emits the degraded dialect-neutral script: variable exports
// only. Hook and profile bodies are dialect-specific and skipped; HookDone is
// left false so a later supported activation still runs the hook.
func composeNeutral(c *Context) (string, Lineage, error) {
	next := c.NextLineage(false)
	encoded, err := next.Encode()
	if err != nil {
		return "", Lineage{}, issue.WrapWithOperation(err, "encode lineage state")
	}

	var manifestVars [][2]string
	if !c.Lineage.HookDone(c.Env.Path) {
		manifestVars = make([][2]string, 0, len(c.Manifest.Vars))
		for _, v := range c.Manifest.Vars {
			manifestVars = append(manifestVars, [2]string{v.Name, v.Value})
		}
	}
	literal := [][2]string{
		{LineageVar, encoded},
		{EnvVar, c.Env.Path},
		{PromptVar, strings.Join(next.Names(), " ")},
	}
	return shell.RenderNeutralExports(manifestVars, literal), next, nil
}
