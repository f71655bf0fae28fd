// Package main is the entry point for the marvin CLI.
package main

import (
	"os"

	"github.com/marvin-agent/marvin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
