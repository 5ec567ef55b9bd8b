// Package config loads, normalizes, and validates the inventaire
// configuration file. Configuration is TOML; the Gemini API key may also be
// supplied through the GEMINI_API_KEY environment variable or a .env file,
// which takes precedence over the file value.
package config
