// Package main provides the entry point for the thaiproxy CLI.
package main

import (
	"os"

	"github.com/thaiproxy/searchproxy/cmd/thaiproxy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
