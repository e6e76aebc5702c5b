// Package main is the entry point for stockwatcher.
package main

import (
	"fmt"
	"os"

	"stockwatcher/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
