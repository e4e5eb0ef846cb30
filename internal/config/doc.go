// Package config loads, normalizes, and validates the TOML configuration that
// drives the pipeline: filesystem paths, provider credentials, render options,
// retry and concurrency budgets, and cache limits. Values resolve in three
// steps: repository defaults, the config file, then environment variable
// fallbacks for API keys.
package config
