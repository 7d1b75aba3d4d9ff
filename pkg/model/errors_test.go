package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "wait 'wait_123' not found"}
	want := "NOT_FOUND: wait 'wait_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("wait", "wait_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "wait 'wait_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "wait 'wait_abc' not found")
	}
}

func TestInvalidGroupError(t *testing.T) {
	if got := (&InvalidGroupError{}).Error(); !strings.Contains(got, "required") {
		t.Errorf("Error() = %q, want it to mention required", got)
	}
	if got := (&InvalidGroupError{Group: "  "}).Error(); !strings.Contains(got, `"  "`) {
		t.Errorf("Error() = %q, want it to quote the group", got)
	}
}

func TestQueryError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &QueryError{Cluster: "grp-1", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(QueryError, cause) = false, want true")
	}
	if !strings.Contains(err.Error(), "grp-1") || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want cluster and cause", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Cluster: "grp-1", Timeout: 30 * time.Second, Polls: 6, LastCount: 2}
	want := "timed out after 30s waiting for cluster grp-1 to drain (6 polls, 2 tasks left)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "wait",
		ID:     "wait_123",
		From:   "COMPLETED",
		To:     "WAITING",
	}
	want := "invalid wait state transition: COMPLETED → WAITING (entity wait_123)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
