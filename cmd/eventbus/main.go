// Package main is the entry point for the eventbus tool.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/eventbus/cmd/eventbus/commands"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	commands.Version = version
	commands.Commit = commit
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
