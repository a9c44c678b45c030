// SPDX-License-Identifier: MPL-2.0

// Package envdir reads the built environment directory produced by the
// environment builder. The layout is fixed and read-only to the activation
// engine: per-dialect bootstrap fragments under activate.d plus shared
// path-setup and prompt scripts, a manifest fragment, and an optional
// lockfile carrying the builder's resolved view of the manifest.
package envdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/denvtool/denv/internal/manifest"
)

// Layout constants of a built environment directory.
const (
	// DirName is the per-project directory created by the builder.
	DirName = ".denv"
	// EnvDirName is the built environment directory inside DirName.
	EnvDirName = "env"
	// ActivateDirName holds the per-dialect bootstrap fragments.
	ActivateDirName = "activate.d"
	// MetaFileName is the descriptor metadata file.
	MetaFileName = "env.toml"
	// ManifestFileName is the manifest fragment file.
	ManifestFileName = "manifest.toml"
	// LockFileName is the optional builder-resolved lockfile.
	LockFileName = "manifest.lock"
	// PathSetupScriptName is the shared path-setup fragment.
	PathSetupScriptName = "set-paths"
	// PromptScriptName is the prompt-decoration fragment.
	PromptScriptName = "set-prompt"
)

// ErrNoEnvironment is returned when no built environment exists at or above
// the requested directory.
var ErrNoEnvironment = errors.New("no environment found")

type (
	// Meta is the descriptor metadata written by the builder into env.toml.
	Meta struct {
		Name      string `toml:"name"`
		Version   int    `toml:"version"`
		StorePath string `toml:"store_path"`
	}

	// Descriptor is an opened environment directory. Immutable for the
	// duration of an activation.
	Descriptor struct {
		// Path is the cleaned absolute path of the environment directory.
		// It doubles as the environment identifier in the lineage state.
		Path string
		Meta Meta
	}
)

// Resolve locates the environment directory for an activation. When explicit
// is non-empty it must name either the environment directory itself or a
// project directory containing one. Otherwise the nearest ancestor of
// startDir containing DirName/EnvDirName wins.
func Resolve(startDir, explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path '%s': %w", explicit, err)
		}
		for _, candidate := range []string{abs, filepath.Join(abs, DirName, EnvDirName)} {
			if isEnvDir(candidate) {
				return filepath.Clean(candidate), nil
			}
		}
		return "", fmt.Errorf("%w at '%s'", ErrNoEnvironment, explicit)
	}

	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, DirName, EnvDirName)
		if isEnvDir(candidate) {
			return filepath.Clean(candidate), nil
		}
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("%w in '%s' or any parent", ErrNoEnvironment, startDir)
		}
	}
}

// isEnvDir reports whether path looks like a built environment directory.
// The manifest is the one file every build produces.
func isEnvDir(path string) bool {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		return false
	}
	_, errManifest := os.Stat(filepath.Join(path, ManifestFileName))
	_, errLock := os.Stat(filepath.Join(path, LockFileName))
	return errManifest == nil || errLock == nil
}

// Open loads the descriptor at path. Metadata is optional: a builder that
// predates env.toml still yields a usable descriptor named after the project
// directory.
func Open(path string) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}
	abs = filepath.Clean(abs)
	if !isEnvDir(abs) {
		return nil, fmt.Errorf("%w at '%s'", ErrNoEnvironment, path)
	}

	d := &Descriptor{Path: abs}
	metaPath := filepath.Join(abs, MetaFileName)
	if data, err := os.ReadFile(metaPath); err == nil {
		if err := gotoml.Unmarshal(data, &d.Meta); err != nil {
			return nil, fmt.Errorf("failed to parse descriptor metadata '%s': %w", metaPath, err)
		}
	}
	if d.Meta.Name == "" {
		// <project>/.denv/env → project directory name
		d.Meta.Name = filepath.Base(filepath.Dir(filepath.Dir(abs)))
	}
	return d, nil
}

// Manifest loads the manifest fragment, preferring the builder-resolved
// lockfile when present.
func (d *Descriptor) Manifest() (*manifest.Fragment, error) {
	lockPath := filepath.Join(d.Path, LockFileName)
	if _, err := os.Stat(lockPath); err == nil {
		return manifest.LoadLockFile(lockPath)
	}
	return manifest.LoadFile(filepath.Join(d.Path, ManifestFileName))
}

// BootstrapScript returns the per-dialect bootstrap fragment path if the
// builder produced one for this dialect.
func (d *Descriptor) BootstrapScript(dialect string) (string, bool) {
	return d.activateScript(dialect)
}

// PathSetupScript returns the shared path-setup fragment path if present.
func (d *Descriptor) PathSetupScript() (string, bool) {
	return d.activateScript(PathSetupScriptName)
}

// PromptScript returns the prompt-decoration fragment path if present.
func (d *Descriptor) PromptScript() (string, bool) {
	return d.activateScript(PromptScriptName)
}

func (d *Descriptor) activateScript(name string) (string, bool) {
	path := filepath.Join(d.Path, ActivateDirName, name)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return "", false
	}
	return path, true
}
