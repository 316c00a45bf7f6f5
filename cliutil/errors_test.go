package cliutil

import (
	"errors"
	"testing"
)

func TestCommandErrorExitStatusDefaultsToGeneric(t *testing.T) {
	err := CommandError{Message: "boom"}
	if err.ExitStatus() != ExitGeneric {
		t.Fatalf("ExitStatus() = %d, want %d", err.ExitStatus(), ExitGeneric)
	}
}

func TestLoadLockExecutionErrorsCarryDistinctExitCodes(t *testing.T) {
	cause := errors.New("underlying")

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"load", LoadError("load: bad directive", cause, "fix the directive"), ExitLoad},
		{"lock", LockError("lock: timed out", cause, "retry later"), ExitLock},
		{"execution", ExecutionError("execution: statement failed", cause, "check the SQL"), ExitExecution},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cerr CommandError
			if !errors.As(tc.err, &cerr) {
				t.Fatalf("expected CommandError, got %T", tc.err)
			}
			if cerr.ExitStatus() != tc.want {
				t.Fatalf("ExitStatus() = %d, want %d", cerr.ExitStatus(), tc.want)
			}
			if !errors.Is(tc.err, cause) {
				t.Fatal("expected Unwrap to expose the cause")
			}
		})
	}
}

func TestWrapErrorFallsBackToCauseMessage(t *testing.T) {
	cause := errors.New("driver exploded")
	err := WrapError("", cause, "", ExitExecution)
	if err.Error() != cause.Error() {
		t.Fatalf("Error() = %q, want %q", err.Error(), cause.Error())
	}
}

func TestFormatSuggestionEmptyHintYieldsEmptyString(t *testing.T) {
	if got := FormatSuggestion(""); got != "" {
		t.Fatalf("FormatSuggestion(\"\") = %q, want empty", got)
	}
	if got := FormatSuggestion("try again"); got == "" {
		t.Fatal("expected non-empty formatted suggestion")
	}
}
