package main

import (
	"errors"
	"fmt"
	"os"

	"policygen/internal/check"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and maps errors to exit codes: 2 for validation
// failures, 1 for everything else. Separated from main() to enable testing.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps errors to exit codes. Validation failures get a distinct
// code so CI can tell a bad policy set from a broken run.
func exitCode(err error) int {
	if errors.Is(err, check.ErrValidationFailed) {
		return 2
	}
	return 1
}
