// Command reconcile finds, classifies, and resolves duplicate events in
// analytics exports.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/graaaaa/reconcile/internal/report"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitUnresolved = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode returns exitUnresolved when groups are left for manual review.
func exitCode(err error) int {
	if errors.Is(err, report.ErrUnresolved) {
		return exitUnresolved
	}
	return exitError
}
