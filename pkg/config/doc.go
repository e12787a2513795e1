// Package config handles configuration management for arbor.
// Values are layered from embedded defaults, the user's config file, the
// project's .arbor.toml, ARBOR_* environment variables and command-line
// flags, each layer overriding the previous one.
package config
