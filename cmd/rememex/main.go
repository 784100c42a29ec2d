// Package main is the entry point for the rememex CLI.
package main

import (
	"os"

	"github.com/rememex/rememex/cmd/rememex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
