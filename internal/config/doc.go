// Package config loads and validates kiln's TOML configuration.
//
// Load resolves the config path (explicit flag, then
// ~/.config/kiln/config.toml, then ./kiln.toml), layers the file over
// repository defaults, expands and normalizes every path field, and
// validates the result. Callers receive a ready-to-use Config; a missing
// file is not an error, it simply yields the defaults.
package config
