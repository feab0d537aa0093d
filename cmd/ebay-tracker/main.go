// Package main is the entry point for the ebay-tracker.
package main

import (
	"os"

	"github.com/skireal/ebay-tracker/cmd/ebay-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
