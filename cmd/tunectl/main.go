// Package main provides the entry point for the tunectl latency tuning CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
)

// Process exit codes. Code 2 distinctly marks a missing rollback target so
// wrapping scripts can tell "nothing to roll back" from real failures.
const (
	exitFailure       = 1
	exitTargetMissing = 2
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, phase.ErrTargetMissing) || errors.Is(err, runctx.ErrAbsent) {
			os.Exit(exitTargetMissing)
		}
		os.Exit(exitFailure)
	}
}
