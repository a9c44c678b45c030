// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a guidance page for a known failure mode.
type Id int

// Known failure modes with rendered guidance.
const (
	NoEnvironmentFoundId Id = iota + 1
	UnsupportedShellId
	ManifestParseErrorId
	TurboExecFailedId
	ConfigLoadFailedId
)

type (
	// MarkdownMsg is markdown text rendered to the terminal.
	MarkdownMsg string

	// HttpLink points to documentation for an issue.
	HttpLink string

	// Guidance is a user-facing page describing a failure mode and the ways
	// out of it.
	Guidance struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the guidance identifier.
func (g *Guidance) Id() Id { return g.id }

// MarkdownMsg returns the raw markdown body.
func (g *Guidance) MarkdownMsg() MarkdownMsg { return g.mdMsg }

// DocLinks returns the documentation links.
func (g *Guidance) DocLinks() []HttpLink { return slices.Clone(g.docLinks) }

// Render renders the guidance markdown with the given glamour style.
func (g *Guidance) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(g.docLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range g.docLinks {
			extraMd += "- " + string(link) + "\n"
		}
	}
	return render(string(g.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	noEnvironmentFoundGuidance = &Guidance{
		id: NoEnvironmentFoundId,
		mdMsg: `
# No environment found!

We looked for a built environment but couldn't find one.

## Search locations (in order of precedence):
1. The directory given with ` + "`--dir`" + `
2. The nearest ancestor of the current directory containing ` + "`.denv/env`" + `

## Things you can try:
- Build the environment first, from your project directory
- Or point denv at the right project:
~~~
$ denv activate --dir /path/to/your/project
~~~`,
	}

	unsupportedShellGuidance = &Guidance{
		id: UnsupportedShellId,
		mdMsg: `
# Unsupported shell

The requested shell has no activation adapter, so only plain variable
exports were emitted. Hook and profile scripts are shell-specific and were
skipped.

## Supported shells:
- bash
- zsh
- fish

## Things you can try:
- Select a supported shell explicitly:
~~~
$ denv activate --shell bash
~~~
- Or evaluate the emitted exports in your shell if it understands POSIX
  ` + "`export`" + ` syntax.`,
	}

	manifestParseErrorGuidance = &Guidance{
		id: ManifestParseErrorId,
		mdMsg: `
# Malformed manifest

The environment's manifest fragment could not be parsed, so nothing was
activated.

## Things you can try:
- Rebuild the environment; a partial build can leave a truncated manifest
- Check ` + "`.denv/env/manifest.toml`" + ` for TOML syntax errors`,
	}

	turboExecFailedGuidance = &Guidance{
		id: TurboExecFailedId,
		mdMsg: `
# Turbo activation failed

Turbo mode replaces the denv process with your command directly, without a
shell. That requires a real executable.

## Things you can try:
- Give a command to run:
~~~
$ denv activate --turbo -- make build
~~~
- Shell built-ins (` + "`cd`, `alias`, ..." + `) can't run without a shell;
  drop ` + "`--turbo`" + ` to run them in a sub-shell instead.`,
	}

	configLoadFailedGuidance = &Guidance{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

denv fell back to its built-in defaults.

## Things you can try:
- Check the config file for TOML syntax errors
- Run with an explicit config file:
~~~
$ denv --config /path/to/config.toml activate
~~~`,
	}

	guidanceRegistry = map[Id]*Guidance{
		NoEnvironmentFoundId: noEnvironmentFoundGuidance,
		UnsupportedShellId:   unsupportedShellGuidance,
		ManifestParseErrorId: manifestParseErrorGuidance,
		TurboExecFailedId:    turboExecFailedGuidance,
		ConfigLoadFailedId:   configLoadFailedGuidance,
	}
)

// Get returns the guidance page for the given id, or nil when unknown.
func Get(id Id) *Guidance {
	return guidanceRegistry[id]
}

// Ids returns all registered guidance ids in ascending order.
func Ids() []Id {
	ids := maps.Keys(guidanceRegistry)
	slices.Sort(ids)
	return ids
}
