// Package main hosts the qoxide CLI entrypoint and command graph.
//
// Each subcommand opens the configured queue, performs one operation, and
// closes it again, so the CLI is safe to run from many shells against the
// same database file. Output is plain text for scripts, tables on a
// terminal, or a {"success": ...} JSON envelope with --json.
package main
