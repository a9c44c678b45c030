// SPDX-License-Identifier: MPL-2.0

package activate

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/denvtool/denv/internal/envdir"
)

const testManifest = `version = 1

[vars]
foo = "bar"

[hook]
on-activate = "export foo=baz # hook-marker"

[profile]
common = "echo common-marker $foo"
bash = "echo bash-marker"
zsh = "echo zsh-marker"
`

// writeTestEnv creates a project directory with a built environment and
// returns the project path.
func writeTestEnv(t *testing.T, manifestTOML string) string {
	t.Helper()

	project := t.TempDir()
	envDir := filepath.Join(project, envdir.DirName, envdir.EnvDirName)
	if err := os.MkdirAll(filepath.Join(envDir, envdir.ActivateDirName), 0o755); err != nil {
		t.Fatalf("failed to create env dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(envDir, envdir.ManifestFileName), []byte(manifestTOML), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	meta := "name = \"testenv\"\nversion = 1\n"
	if err := os.WriteFile(filepath.Join(envDir, envdir.MetaFileName), []byte(meta), 0o644); err != nil {
		t.Fatalf("failed to write env.toml: %v", err)
	}
	return project
}

// writeActivateScript adds a fragment under activate.d.
func writeActivateScript(t *testing.T, project, name, content string) {
	t.Helper()
	path := filepath.Join(project, envdir.DirName, envdir.EnvDirName, envdir.ActivateDirName, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// buildTestContext builds an activation context against a fake inherited
// environment.
func buildTestContext(t *testing.T, project string, env map[string]string, mutate func(*Options)) *Context {
	t.Helper()

	interactive := false
	opts := Options{
		Dir:         project,
		Shell:       "bash",
		WorkDir:     project,
		Getenv:      func(k string) string { return env[k] },
		Interactive: &interactive,
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctx, err := Build(opts)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return ctx
}

func TestCompose_SingleActivationOrder(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	ctx := buildTestContext(t, project, nil, nil)

	script, next, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	varIdx := strings.Index(script, `export foo="bar"`)
	markerIdx := strings.Index(script, LineageVar+"=")
	hookIdx := strings.Index(script, "hook-marker")
	commonIdx := strings.Index(script, "common-marker")
	dialectIdx := strings.Index(script, "bash-marker")

	for name, idx := range map[string]int{
		"var export":      varIdx,
		"lineage marker":  markerIdx,
		"hook":            hookIdx,
		"common profile":  commonIdx,
		"dialect profile": dialectIdx,
	} {
		if idx < 0 {
			t.Fatalf("composed script missing %s:\n%s", name, script)
		}
	}

	// Mandated order: vars, then the lineage marker (so re-entrant
	// invocations from inside the hook see the guard), then hook, then the
	// common profile, then the dialect profile.
	if !(varIdx < markerIdx && markerIdx < hookIdx && hookIdx < commonIdx && commonIdx < dialectIdx) {
		t.Errorf("wrong composition order (var=%d marker=%d hook=%d common=%d dialect=%d):\n%s",
			varIdx, markerIdx, hookIdx, commonIdx, dialectIdx, script)
	}

	if strings.Contains(script, "zsh-marker") {
		t.Errorf("composed script contains another dialect's profile:\n%s", script)
	}

	if !next.HookDone(ctx.Env.Path) {
		t.Errorf("next lineage does not record hook as done")
	}
}

func TestCompose_NestedActivationSkipsHookRerunsProfiles(t *testing.T) {
	project := writeTestEnv(t, testManifest)

	first := buildTestContext(t, project, nil, nil)
	_, next, err := Compose(first)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	encoded, err := next.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	// Nested activation in a different dialect: the guard is shell-agnostic.
	nested := buildTestContext(t, project, map[string]string{LineageVar: encoded}, func(o *Options) {
		o.Shell = "zsh"
	})
	script, next2, err := Compose(nested)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	if strings.Contains(script, "hook-marker") {
		t.Errorf("nested activation re-ran the hook:\n%s", script)
	}
	// Vars are gated with the hook: re-exporting foo=bar here would revert
	// the hook's foo=baz.
	if strings.Contains(script, "export foo=") {
		t.Errorf("nested activation re-exported manifest vars:\n%s", script)
	}
	if !strings.Contains(script, "common-marker") || !strings.Contains(script, "zsh-marker") {
		t.Errorf("nested activation did not re-run profiles:\n%s", script)
	}

	// The lineage never shrinks and the hook flag stays set.
	if next2.Len() != 1 || !next2.HookDone(nested.Env.Path) {
		t.Errorf("lineage state regressed: %+v", next2.Entries())
	}
}

// The vars declare foo=bar, the hook overrides it to baz; activating a second
// time inside the first activation must leave foo=baz intact.
func TestCompose_NestedReactivationKeepsHookMutations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}

	project := writeTestEnv(t, testManifest)

	first := buildTestContext(t, project, nil, nil)
	outer, next, err := Compose(first)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	encoded, err := next.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	nested := buildTestContext(t, project, map[string]string{LineageVar: encoded}, nil)
	inner, _, err := Compose(nested)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	dir := t.TempDir()
	outerPath := filepath.Join(dir, "outer")
	innerPath := filepath.Join(dir, "inner")
	if err := os.WriteFile(outerPath, []byte(outer), 0o644); err != nil {
		t.Fatalf("failed to write outer fragment: %v", err)
	}
	if err := os.WriteFile(innerPath, []byte(inner), 0o644); err != nil {
		t.Fatalf("failed to write inner fragment: %v", err)
	}

	out, err := exec.Command("bash", "-c",
		"source "+outerPath+" >/dev/null && source "+innerPath+" >/dev/null && printf '%s' \"$foo\"").Output()
	if err != nil {
		t.Fatalf("bash failed: %v", err)
	}
	if got := string(out); got != "baz" {
		t.Errorf("after nested re-activation foo = %q, want the hook's %q", got, "baz")
	}
}

func TestCompose_NoProfilesStillRunsHook(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	ctx := buildTestContext(t, project, nil, func(o *Options) {
		o.NoProfiles = true
	})

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	if !strings.Contains(script, "hook-marker") {
		t.Errorf("hook skipped under --no-profiles:\n%s", script)
	}
	if strings.Contains(script, "common-marker") || strings.Contains(script, "bash-marker") {
		t.Errorf("profiles ran despite suppression:\n%s", script)
	}
}

func TestCompose_NoProfilesViaEnvironment(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	ctx := buildTestContext(t, project, map[string]string{NoProfilesVar: "1"}, nil)

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	if strings.Contains(script, "common-marker") {
		t.Errorf("profiles ran despite DENV_NO_PROFILES:\n%s", script)
	}
}

func TestCompose_UnsupportedShellFallsBackToExports(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	ctx := buildTestContext(t, project, nil, func(o *Options) {
		o.Shell = "powershell"
	})

	if ctx.Adapter != nil {
		t.Fatalf("expected nil adapter for unsupported shell")
	}

	script, next, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	want := []string{
		`export foo="bar"`,
	}
	var exports []string
	for _, line := range strings.Split(strings.TrimSpace(script), "\n") {
		if strings.HasPrefix(line, "export foo=") {
			exports = append(exports, line)
		}
	}
	if diff := cmp.Diff(want, exports); diff != "" {
		t.Errorf("neutral export mismatch (-want +got):\n%s", diff)
	}

	if strings.Contains(script, "hook-marker") || strings.Contains(script, "common-marker") {
		t.Errorf("neutral fallback included dialect-specific bodies:\n%s", script)
	}
	if !strings.Contains(script, LineageVar) {
		t.Errorf("neutral fallback missing lineage marker:\n%s", script)
	}
	// The hook did not run, so a later supported activation must still run it.
	if next.HookDone(ctx.Env.Path) {
		t.Errorf("neutral fallback wrongly marked the hook as done")
	}
}

func TestCompose_VarsKeepDeclarationOrderAndExpansion(t *testing.T) {
	manifestTOML := `version = 1

[vars]
base = "/opt/tools"
bin = "$base/bin"
`
	project := writeTestEnv(t, manifestTOML)
	ctx := buildTestContext(t, project, nil, nil)

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	baseIdx := strings.Index(script, `export base="/opt/tools"`)
	binIdx := strings.Index(script, `export bin="$base/bin"`)
	if baseIdx < 0 || binIdx < 0 {
		t.Fatalf("expected expanding exports in declaration order:\n%s", script)
	}
	if baseIdx > binIdx {
		t.Errorf("vars emitted out of declaration order:\n%s", script)
	}
}

func TestCompose_HookAbortGuardsProfiles(t *testing.T) {
	manifestTOML := `version = 1

[hook]
on-activate = "false # hook-marker"

[profile]
common = "echo common-marker"

[options]
hook-abort-on-failure = true
`
	project := writeTestEnv(t, manifestTOML)
	ctx := buildTestContext(t, project, nil, nil)

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	returnIdx := strings.Index(script, `return "$_denv_status"`)
	commonIdx := strings.Index(script, "common-marker")
	if returnIdx < 0 {
		t.Fatalf("hook-abort-on-failure did not render a status guard:\n%s", script)
	}
	if commonIdx >= 0 && returnIdx > commonIdx {
		t.Errorf("status guard rendered after the profile it must protect:\n%s", script)
	}
}

// Print-mode output gets eval'd into the caller's shell rather than sourced;
// the abort guard must still stop the profiles there instead of erroring.
func TestCompose_HookAbortWorksUnderEval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}

	manifestTOML := `version = 1

[hook]
on-activate = "false"

[profile]
common = "echo common-marker"

[options]
hook-abort-on-failure = true
`
	project := writeTestEnv(t, manifestTOML)
	ctx := buildTestContext(t, project, nil, nil)

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	fragment := filepath.Join(t.TempDir(), "fragment")
	if err := os.WriteFile(fragment, []byte(script), 0o644); err != nil {
		t.Fatalf("failed to write fragment: %v", err)
	}

	out, err := exec.Command("bash", "-c", `eval "$(cat `+fragment+`)"; printf 'survived'`).CombinedOutput()
	if err != nil {
		t.Fatalf("bash failed: %v\n%s", err, out)
	}
	if strings.Contains(string(out), "common-marker") {
		t.Errorf("profiles ran despite the failed hook under eval:\n%s", out)
	}
	if strings.Contains(string(out), "can only") {
		t.Errorf("abort guard errored at top level under eval:\n%s", out)
	}
	if !strings.Contains(string(out), "survived") {
		t.Errorf("eval'ing shell did not continue past the aborted activation:\n%s", out)
	}
}

func TestBuild_HookAbortPrecedence(t *testing.T) {
	explicitOff := `version = 1

[hook]
on-activate = "false"

[options]
hook-abort-on-failure = false
`
	tests := []struct {
		name         string
		manifestTOML string
		configDfl    bool
		want         bool
	}{
		{"manifest silent, config default on", testManifest, true, true},
		{"manifest silent, config default off", testManifest, false, false},
		{"manifest explicitly off beats config default", explicitOff, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := writeTestEnv(t, tt.manifestTOML)
			ctx := buildTestContext(t, project, nil, func(o *Options) {
				o.HookAbortDefault = tt.configDfl
			})
			if ctx.HookAbort != tt.want {
				t.Errorf("HookAbort = %v, want %v", ctx.HookAbort, tt.want)
			}
		})
	}
}

func TestCompose_DescriptorScriptsSourced(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	writeActivateScript(t, project, "bash", "# bootstrap")
	writeActivateScript(t, project, envdir.PathSetupScriptName, "# paths")
	writeActivateScript(t, project, envdir.PromptScriptName, "# prompt")

	interactive := true
	ctx := buildTestContext(t, project, nil, func(o *Options) {
		o.Interactive = &interactive
	})

	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	bootstrapIdx := strings.Index(script, filepath.Join(envdir.ActivateDirName, "bash"))
	pathsIdx := strings.Index(script, envdir.PathSetupScriptName)
	promptIdx := strings.Index(script, envdir.PromptScriptName)
	hookIdx := strings.Index(script, "hook-marker")

	if bootstrapIdx < 0 || pathsIdx < 0 || promptIdx < 0 {
		t.Fatalf("descriptor scripts not sourced:\n%s", script)
	}
	// Bootstrap first, path setup before the hook, prompt last.
	if !(bootstrapIdx < pathsIdx && pathsIdx < hookIdx && hookIdx < promptIdx) {
		t.Errorf("descriptor scripts out of order (bootstrap=%d paths=%d hook=%d prompt=%d):\n%s",
			bootstrapIdx, pathsIdx, hookIdx, promptIdx, script)
	}
}

func TestCompose_PromptSkippedWhenNotInteractive(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	writeActivateScript(t, project, envdir.PromptScriptName, "# prompt")

	ctx := buildTestContext(t, project, nil, nil)
	script, _, err := Compose(ctx)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	if strings.Contains(script, envdir.PromptScriptName) {
		t.Errorf("prompt script sourced for a non-interactive activation:\n%s", script)
	}
}

func TestDecide(t *testing.T) {
	project := writeTestEnv(t, testManifest)

	tests := []struct {
		name         string
		env          map[string]string
		mutate       func(*Options)
		wantVars     bool
		wantHook     bool
		wantProfiles bool
	}{
		{"top level", nil, nil, true, true, true},
		{"turbo skips profiles", nil, func(o *Options) { o.Turbo = true }, true, true, false},
		{"suppressed profiles", nil, func(o *Options) { o.NoProfiles = true }, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := buildTestContext(t, project, tt.env, tt.mutate)
			d := ctx.Decide()
			if d.RunVars != tt.wantVars {
				t.Errorf("RunVars = %v, want %v", d.RunVars, tt.wantVars)
			}
			if d.RunHook != tt.wantHook {
				t.Errorf("RunHook = %v, want %v", d.RunHook, tt.wantHook)
			}
			if d.RunProfiles != tt.wantProfiles {
				t.Errorf("RunProfiles = %v, want %v", d.RunProfiles, tt.wantProfiles)
			}
		})
	}
}

func TestDecide_HookDoneInLineage(t *testing.T) {
	project := writeTestEnv(t, testManifest)
	first := buildTestContext(t, project, nil, nil)
	_, next, err := Compose(first)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	encoded, _ := next.Encode()

	nested := buildTestContext(t, project, map[string]string{LineageVar: encoded}, nil)
	d := nested.Decide()
	if d.RunVars {
		t.Errorf("RunVars = true for a lineage that already exported vars")
	}
	if d.RunHook {
		t.Errorf("RunHook = true for a lineage that already completed the hook")
	}
	if !d.RunProfiles {
		t.Errorf("RunProfiles = false, want true on nested activation")
	}
}
