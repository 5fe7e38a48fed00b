// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional YAML file. It provides
// type-safe access to the settings of the queue server, its throttle
// registry, the retry wrapper and the admin API.
package config
