// Package scout provides the command-line interface for the scout scanner.
// It configures subcommands (scan, github, baseline, rules, view, config),
// layers flags over the local and global config files, and maps each run
// onto the exit codes 0 (clean), 1 (findings) and 2 (error or incomplete).
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/redactyl/scout/cmd/scout"
//	func main() { scout.Execute() }
package scout
