package errors

import (
	"strings"
	"testing"
	"time"
)

func TestDomainErrorWrapping(t *testing.T) {
	cause := New("connection refused")
	err := NewRuntimeError("engine unreachable", Join(ErrRuntimeUnavailable, cause)).
		WithBackend("docker").WithOutput("daemon not running")

	if !Is(err, ErrRuntimeUnavailable) {
		t.Error("RuntimeError does not match its wrapped sentinel")
	}
	if !Is(err, cause) {
		t.Error("RuntimeError does not match the underlying cause")
	}

	msg := err.Error()
	for _, part := range []string{"engine unreachable", "docker", "daemon not running"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}

	var rerr *RuntimeError
	if !As(err, &rerr) {
		t.Fatal("As failed for *RuntimeError")
	}
	if rerr.Backend != "docker" {
		t.Errorf("Backend = %q", rerr.Backend)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", New("boom"), false},
		{"timeout sentinel", ErrTimeout, true},
		{"timeout error type", NewTimeoutError("clone", time.Minute), true},
		{"timeout marked non-retryable", NewTimeoutError("clone", time.Minute).WithRetryable(false), false},
		{"runtime unavailable", NewRuntimeError("down", ErrRuntimeUnavailable), false},
		{"wrapped runtime unavailable", Wrap(Join(ErrRuntimeUnavailable, New("x")), "prepare"), false},
		{"retryable runtime error", NewRuntimeError("flaky", New("x")).WithRetryable(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("must not be empty").WithField("repo").WithValue("")
	if !strings.Contains(err.Error(), "repo") {
		t.Errorf("message = %q", err.Error())
	}

	var verr *ValidationError
	if !As(error(err), &verr) {
		t.Fatal("As failed for *ValidationError")
	}
	if verr.Field != "repo" {
		t.Errorf("Field = %q", verr.Field)
	}
}

func TestWrapfPreservesSentinels(t *testing.T) {
	err := Wrapf(ErrCanceled, "step %s", "clone")
	if !Is(err, ErrCanceled) {
		t.Error("Wrapf broke sentinel matching")
	}
	if !strings.Contains(err.Error(), "step clone") {
		t.Errorf("message = %q", err.Error())
	}

	if Wrap(nil, "ctx") != nil || Wrapf(nil, "ctx") != nil {
		t.Error("wrapping nil did not return nil")
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("nil severity = %v", got)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("plain severity = %v", got)
	}
	if got := GetSeverity(NewNotFoundError("run", "x")); got != SeverityWarning {
		t.Errorf("not-found severity = %v", got)
	}
}
