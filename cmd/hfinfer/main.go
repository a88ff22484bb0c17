// Package main is the entry point for the hfinfer CLI.
package main

import (
	"os"

	"github.com/jmylchreest/hfinfer/cmd/hfinfer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
