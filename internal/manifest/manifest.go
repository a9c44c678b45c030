// SPDX-License-Identifier: MPL-2.0

// Package manifest parses the environment manifest fragment consumed by the
// activation engine: declared variables, the on-activate hook, and per-shell
// profile scripts. Hook and profile bodies are opaque text; the engine never
// interprets them here.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ProfileCommon is the dialect-agnostic profile key.
const ProfileCommon = "common"

// SupportedVersion is the only manifest schema version this engine accepts.
const SupportedVersion = 1

type (
	// Var is a single declared variable. Declaration order is significant:
	// later entries may reference variables exported by earlier ones.
	Var struct {
		Name  string
		Value string
	}

	// Options holds engine-relevant toggles declared in the manifest.
	Options struct {
		// HookAbortOnFailure stops the composed fragment with the hook's
		// exit status before any profile script runs. When false the target
		// shell's own error-handling mode decides. Nil means the manifest
		// does not say and an engine-level default applies; an explicit
		// false must win over that default.
		HookAbortOnFailure *bool
	}

	// Fragment is the parsed manifest fragment.
	Fragment struct {
		Version int
		// Vars preserves the declaration order from the manifest.
		Vars []Var
		// Hook is the on-activate script body; empty means no hook.
		Hook string
		// Profiles maps "common" or a dialect name to a script body.
		Profiles map[string]string
		Options  Options
	}

	// rawManifest mirrors the TOML structure for decoding. Var ordering is
	// recovered separately from toml.MetaData.
	rawManifest struct {
		Version int               `toml:"version"`
		Vars    map[string]string `toml:"vars"`
		Hook    rawHook           `toml:"hook"`
		Profile map[string]string `toml:"profile"`
		Options rawOptions        `toml:"options"`
	}

	rawHook struct {
		OnActivate string `toml:"on-activate"`
	}

	rawOptions struct {
		HookAbortOnFailure bool `toml:"hook-abort-on-failure"`
	}
)

// ParseTOML parses a manifest fragment from TOML, preserving the declaration
// order of [vars] keys via the decoder's metadata.
func ParseTOML(data []byte) (*Fragment, error) {
	var raw rawManifest
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest TOML: %w", err)
	}
	if raw.Version != 0 && raw.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported manifest version %d (engine supports %d)", raw.Version, SupportedVersion)
	}

	f := &Fragment{
		Version:  SupportedVersion,
		Profiles: raw.Profile,
		Hook:     raw.Hook.OnActivate,
	}
	if md.IsDefined("options", "hook-abort-on-failure") {
		v := raw.Options.HookAbortOnFailure
		f.Options.HookAbortOnFailure = &v
	}
	if f.Profiles == nil {
		f.Profiles = map[string]string{}
	}

	// md.Keys returns keys in order of appearance in the document, which is
	// the only place declaration order survives decoding into a map.
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "vars" {
			continue
		}
		name := key[1]
		f.Vars = append(f.Vars, Var{Name: name, Value: raw.Vars[name]})
	}
	return f, nil
}

// LoadFile reads and parses a manifest TOML file.
func LoadFile(path string) (*Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest '%s': %w", path, err)
	}
	f, err := ParseTOML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest '%s': %w", path, err)
	}
	return f, nil
}

// Profile returns the body for the given profile key and whether it exists
// and is non-empty.
func (f *Fragment) Profile(key string) (string, bool) {
	body, ok := f.Profiles[key]
	if !ok || body == "" {
		return "", false
	}
	return body, true
}

// HasHook reports whether the manifest declares an on-activate hook.
func (f *Fragment) HasHook() bool { return f.Hook != "" }

// HookAbort resolves the hook-abort policy: the manifest's own setting when
// present, the given fallback otherwise.
func (f *Fragment) HookAbort(fallback bool) bool {
	if f.Options.HookAbortOnFailure != nil {
		return *f.Options.HookAbortOnFailure
	}
	return fallback
}

type (
	// Lock is the builder-resolved lockfile embedding the manifest fragment.
	// Unlike the TOML source, the lockfile stores vars as an explicit array
	// so ordering survives JSON round-trips.
	Lock struct {
		Version  int          `json:"version"`
		Manifest LockManifest `json:"manifest"`
	}

	// LockManifest is the manifest fragment as resolved by the builder.
	LockManifest struct {
		Vars     []LockVar         `json:"vars"`
		Hook     string            `json:"hook,omitempty"`
		Profiles map[string]string `json:"profiles,omitempty"`
		Options  LockOptions       `json:"options"`
	}

	// LockVar is one resolved variable declaration.
	LockVar struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	// LockOptions mirrors Options in the lockfile. The pointer keeps the
	// set/unset distinction across the JSON round trip.
	LockOptions struct {
		HookAbortOnFailure *bool `json:"hook_abort_on_failure,omitempty"`
	}
)

// ParseLock parses a JSON lockfile into a Fragment.
func ParseLock(data []byte) (*Fragment, error) {
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("invalid lockfile JSON: %w", err)
	}
	if lock.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported lockfile version %d (engine supports %d)", lock.Version, SupportedVersion)
	}

	f := &Fragment{
		Version:  lock.Version,
		Hook:     lock.Manifest.Hook,
		Profiles: lock.Manifest.Profiles,
		Options:  Options{HookAbortOnFailure: lock.Manifest.Options.HookAbortOnFailure},
	}
	if f.Profiles == nil {
		f.Profiles = map[string]string{}
	}
	for _, v := range lock.Manifest.Vars {
		f.Vars = append(f.Vars, Var{Name: v.Name, Value: v.Value})
	}
	return f, nil
}

// LoadLockFile reads and parses a JSON lockfile.
func LoadLockFile(path string) (*Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile '%s': %w", path, err)
	}
	f, err := ParseLock(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile '%s': %w", path, err)
	}
	return f, nil
}
