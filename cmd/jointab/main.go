// Package main provides the jointab CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/jointab/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
