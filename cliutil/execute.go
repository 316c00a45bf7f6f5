package cliutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Execute runs root, translating a returned CommandError into stderr
// output plus the matching process exit code (§7 "on failure, prints the
// failing migration id, the failing statement (truncated), and the
// underlying driver error" — cmd/yoyo's commands build that text into
// CommandError.Message before returning it here).
//
// verbose is read after root.Execute() returns, not before: persistent
// flags are only parsed during that call, so a plain bool argument
// evaluated at the call site would always observe the pre-parse default.
func Execute(root *cobra.Command, verbose *bool) {
	if err := root.Execute(); err != nil {
		exitCode := ExitGeneric
		var cerr CommandError
		if errors.As(err, &cerr) {
			msg := strings.TrimSpace(cerr.Message)
			if msg == "" && cerr.Cause != nil {
				msg = cerr.Cause.Error()
			}
			if msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			if cerr.Cause != nil && msg != cerr.Cause.Error() && (*verbose || msg == "") {
				fmt.Fprintf(os.Stderr, "details: %v\n", cerr.Cause)
			}
			if cerr.Suggestion != "" {
				fmt.Fprintln(os.Stderr, FormatSuggestion(cerr.Suggestion))
			}
			exitCode = cerr.ExitStatus()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode)
	}
}
