// Package main is the entry point for the personakit CLI.
package main

import (
	"os"

	"github.com/personakit/personakit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
