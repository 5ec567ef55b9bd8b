// Package logging builds the slog logger used by every command. The console
// format is a compact single-line handler meant for terminals; the json
// format is for captured runs.
package logging
