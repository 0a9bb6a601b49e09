package main

import (
	"setup-capabilities/cmd" // CLI commands and execution logic
)

// main is the program entry point. It delegates to cmd.Execute(), which parses
// the command line and runs the selected command.
//
// setup-capabilities provisions a Linux machine from a directory of
// capabilities. Each capability is a directory holding:
//   - capability.yaml: template variables, packages, services and per-file
//     mode/owner overrides
//   - setup.sh (optional): a script rendered with the capability's variables
//     and executed once
//   - config.d/ (optional): a tree mirrored onto the filesystem root, with
//     every file rendered as a template
//
// A run loads every descriptor up front and then applies four phases, each for
// all capabilities before the next begins: install packages, run setup
// scripts, materialize config trees, activate services.
//
// Error handling strategy:
//   - The first failure anywhere stops the run; nothing is retried or rolled back
//   - Failed commands report their command line, exit status and captured output
//   - The process exits with status 1 after printing a single error message
func main() {
	cmd.Execute()
}
