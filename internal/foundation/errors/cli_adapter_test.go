package errors

import (
	"log/slog"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad path").Build(), expected: 2},
		{name: "cancelled", err: CancelledError("aborted").Build(), expected: 3},
		{name: "conflict", err: ConflictError("conflicts in working copy").Build(), expected: 4},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "vcs", err: VCSError("svn down").Build(), expected: 8},
		{name: "store", err: StoreError("share offline").Build(), expected: 8},
		{name: "contract", err: ContractError("nil path").Build(), expected: 10},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	tests := []struct {
		name    string
		adapter *CLIErrorAdapter
		err     error
		want    string
	}{
		{name: "nil error", adapter: quiet, err: nil, want: ""},
		{name: "internal hidden", adapter: quiet, err: InternalError("boom").Build(), want: "Internal error occurred (use -v for details)"},
		{name: "user facing message", adapter: quiet, err: VCSError("merge failed").Build(), want: "Error: merge failed"},
		{name: "verbose full error", adapter: verbose, err: VCSError("merge failed").Build(), want: "[vcs:error] merge failed"},
		{name: "unclassified", adapter: quiet, err: &customError{msg: "unknown error"}, want: "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.adapter.FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
