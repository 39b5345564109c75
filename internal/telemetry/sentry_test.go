package telemetry

import (
	"errors"
	"testing"
)

func TestParseErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		errMsg string
		want   string
	}{
		{
			name:   "nil pointer",
			errMsg: "runtime error: invalid memory address or nil pointer dereference",
			want:   "Nil Pointer Dereference",
		},
		{
			name:   "index out of range",
			errMsg: "runtime error: index out of range [5] with length 3",
			want:   "Index Out of Range",
		},
		{
			name:   "panic message",
			errMsg: "panic: unexpected visit state",
			want:   "Panic: unexpected visit state",
		},
		{
			name:   "plain error passes through",
			errMsg: "database locked",
			want:   "database locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseErrorType(tt.errMsg); got != tt.want {
				t.Errorf("parseErrorType(%q) = %q, want %q", tt.errMsg, got, tt.want)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	err := errors.New("query failed")

	if got := generateErrorTitle(err, "datastore"); got != "Datastore: query failed" {
		t.Errorf("generateErrorTitle() = %q", got)
	}

	// Unknown component is omitted from the title
	if got := generateErrorTitle(err, "unknown"); got != "query failed" {
		t.Errorf("generateErrorTitle() with unknown component = %q", got)
	}
}

func TestTitleCaseComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"datastore", "Datastore"},
		{"api", "API"},
		{"visit_matcher", "Visit Matcher"},
	}

	for _, tt := range tests {
		if got := titleCaseComponent(tt.in); got != tt.want {
			t.Errorf("titleCaseComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCaptureMessageDefersBeforeInit(t *testing.T) {
	// Not parallel: manipulates package state.
	deferredMutex.Lock()
	sentryInitialized = false
	deferredMessages = nil
	deferredMutex.Unlock()

	CaptureMessage("early message", "info", "cli")

	deferredMutex.Lock()
	defer deferredMutex.Unlock()
	if len(deferredMessages) != 1 {
		t.Fatalf("expected 1 deferred message, got %d", len(deferredMessages))
	}
	if deferredMessages[0].Message != "early message" {
		t.Errorf("deferred message = %q", deferredMessages[0].Message)
	}
}
