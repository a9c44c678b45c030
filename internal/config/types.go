// SPDX-License-Identifier: MPL-2.0

package config

type (
	// Config is the effective denv configuration.
	Config struct {
		// Shell is the default dialect when neither --shell nor DENV_SHELL
		// selects one. Empty means detect from $SHELL.
		Shell string `mapstructure:"shell" toml:"shell"`

		// NoProfiles globally suppresses profile scripts during activation.
		NoProfiles bool `mapstructure:"no_profiles" toml:"no_profiles"`

		// HookAbortOnFailure is the default for manifests that do not set
		// options.hook-abort-on-failure themselves.
		HookAbortOnFailure bool `mapstructure:"hook_abort_on_failure" toml:"hook_abort_on_failure"`

		// UI holds presentation settings.
		UI UIConfig `mapstructure:"ui" toml:"ui"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		// Verbose enables debug-level logging.
		Verbose bool `mapstructure:"verbose" toml:"verbose"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Shell:              "",
		NoProfiles:         false,
		HookAbortOnFailure: false,
		UI:                 UIConfig{Verbose: false},
	}
}
