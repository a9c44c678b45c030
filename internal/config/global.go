// SPDX-License-Identifier: MPL-2.0

package config

import "sync"

var (
	mu sync.Mutex

	cached *Config

	// configDirOverride allows tests to override the config directory.
	// os.UserHomeDir() doesn't reliably respect the HOME environment
	// variable on all platforms (e.g., macOS in CI).
	configDirOverride string

	// configFilePathOverride forces loading from a specific file (--config).
	configFilePathOverride string
)

// Get returns the cached configuration, loading it on first use. Load errors
// surface once through Load; Get always yields a usable config.
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()
	if cached == nil {
		cfg, err := Load()
		if err != nil || cfg == nil {
			cfg = DefaultConfig()
		}
		cached = cfg
	}
	return cached
}

// Set replaces the cached configuration. Used by the CLI after an explicit
// Load so later Get calls observe the same instance.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	cached = cfg
}

// SetConfigFilePathOverride forces loading from a specific config file.
func SetConfigFilePathOverride(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFilePathOverride = path
	cached = nil
}

// SetConfigDirOverride sets a custom config directory path. Primarily for
// tests, to bypass os.UserHomeDir().
func SetConfigDirOverride(dir string) {
	mu.Lock()
	defer mu.Unlock()
	configDirOverride = dir
	cached = nil
}

// Reset clears overrides and the cache. Call from test cleanup.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	configDirOverride = ""
	configFilePathOverride = ""
	cached = nil
}
