// Package config loads reviewer settings from YAML or TOML files, .env files
// and environment variables, in that order of increasing precedence.
package config
