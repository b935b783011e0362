// Package cli builds the cobra command tree, validates user input, and
// handles process-level concerns like exit codes. It translates CLI flags and
// STEPGRID_* environment variables into the application's configuration.
package cli
