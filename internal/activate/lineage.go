// SPDX-License-Identifier: MPL-2.0

package activate

import (
	"encoding/json"
	"strings"
)

// Process-boundary state variables. They are the engine's only persistence
// mechanism: read once from the inherited environment at the start of an
// invocation and written forward only through the composed script (or the
// exec'd environment in turbo mode), never by mutating this process's view.
const (
	// LineageVar carries the ordered set of active environments as JSON.
	LineageVar = "_DENV_ACTIVE_ENVIRONMENTS"
	// EnvVar is the innermost active environment directory.
	EnvVar = "DENV_ENV"
	// PromptVar is the space-joined environment names for prompt decoration.
	PromptVar = "DENV_PROMPT_ENVIRONMENTS"
	// TurboVar enables turbo mode via the environment.
	TurboVar = "DENV_TURBO"
	// NoProfilesVar globally suppresses profile scripts.
	NoProfilesVar = "DENV_NO_PROFILES"
	// ShellVar overrides dialect detection.
	ShellVar = "DENV_SHELL"
)

type (
	// LineageEntry records one active environment in the ancestor process
	// chain.
	LineageEntry struct {
		// ID is the cleaned absolute environment directory path. It is
		// dialect-independent, so a guard set by one shell is honored by
		// another.
		ID string `json:"id"`
		// Name is the environment's display name.
		Name string `json:"name"`
		// ActivationID identifies the first activation of this environment
		// in the lineage, for diagnostics and listings.
		ActivationID string `json:"activation_id"`
		// HookDone records that variables were exported and the on-activate
		// hook ran (or was deliberately completed) for this lineage.
		HookDone bool `json:"hook_done"`
	}

	// Lineage is the immutable ordered set of environments active in this
	// process lineage. Mutating operations return a new value; the inherited
	// state is never changed in place.
	Lineage struct {
		entries []LineageEntry
	}
)

// ParseLineage decodes the inherited lineage marker. A malformed or absent
// marker yields a fresh empty lineage so a top-level activation always
// succeeds.
func ParseLineage(raw string) Lineage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Lineage{}
	}
	var entries []LineageEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return Lineage{}
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != "" {
			kept = append(kept, e)
		}
	}
	return Lineage{entries: kept}
}

// Len returns the number of active environments.
func (l Lineage) Len() int { return len(l.entries) }

// IsActive reports whether the environment is already active in this lineage.
func (l Lineage) IsActive(id string) bool {
	for _, e := range l.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// HookDone reports whether variables were already exported and the hook
// already ran for this environment in this lineage.
func (l Lineage) HookDone(id string) bool {
	for _, e := range l.entries {
		if e.ID == id {
			return e.HookDone
		}
	}
	return false
}

// Entries returns a copy of the lineage entries in activation order.
func (l Lineage) Entries() []LineageEntry {
	out := make([]LineageEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Names returns the environment names in activation order.
func (l Lineage) Names() []string {
	names := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		names = append(names, e.Name)
	}
	return names
}

// Innermost returns the most recently activated environment.
func (l Lineage) Innermost() (LineageEntry, bool) {
	if len(l.entries) == 0 {
		return LineageEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// WithActivated returns a new lineage with the entry recorded. The set is
// append-only: an environment already present keeps its position and its
// original activation id, and HookDone can only transition false→true.
func (l Lineage) WithActivated(entry LineageEntry) Lineage {
	out := make([]LineageEntry, len(l.entries))
	copy(out, l.entries)
	for i, e := range out {
		if e.ID == entry.ID {
			out[i].HookDone = e.HookDone || entry.HookDone
			return Lineage{entries: out}
		}
	}
	return Lineage{entries: append(out, entry)}
}

// Encode serializes the lineage for the marker variable.
func (l Lineage) Encode() (string, error) {
	if len(l.entries) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l.entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
