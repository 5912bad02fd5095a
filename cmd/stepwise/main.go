// Package main is the entry point for the stepwise CLI.
package main

import (
	"os"

	"github.com/stepwise-ai/stepwise/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
