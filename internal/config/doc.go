// Package config loads, normalizes, and validates the TOML configuration
// shared by the potreed daemon and CLI.
package config
