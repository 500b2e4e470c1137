// Package config loads and merges veil configuration from defaults, the
// platform config file, environment variables, and CLI flag overrides.
package config
