package common

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, ExitOK},
		{"invalid input", ErrInvalidInput, ExitInvalidInput},
		{"profile not found", ErrProfileNotFound, ExitNotFound},
		{"config not found", ErrConfigNotFound, ExitNotFound},
		{"duplicate name", ErrDuplicateName, ExitDuplicateName},
		{"storage", ErrStorage, ExitStorage},
		{"auth failed", ErrAuthFailed, ExitAuthFailed},
		{"engine", ErrEngine, ExitEngine},
		{"no active connection", ErrNoActiveConnection, ExitNoActiveConnection},
		{"already connected", ErrAlreadyConnected, ExitAlreadyConnected},
		{"unclassified", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.expected {
				t.Errorf("ExitCode(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestExitCode_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("connect %q: %w", "work", ErrAuthFailed)
	if got := ExitCode(wrapped); got != ExitAuthFailed {
		t.Errorf("ExitCode(wrapped) = %v, want %v", got, ExitAuthFailed)
	}

	doubly := WrapError(wrapped, "command failed")
	if got := ExitCode(doubly); got != ExitAuthFailed {
		t.Errorf("ExitCode(doubly wrapped) = %v, want %v", got, ExitAuthFailed)
	}
}

func TestFailure(t *testing.T) {
	err := Failure(ErrProfileNotFound, "Profile not found: %s", "missing")

	if got := err.Error(); got != "Profile not found: missing" {
		t.Errorf("Error() = %q, want %q", got, "Profile not found: missing")
	}

	if !errors.Is(err, ErrProfileNotFound) {
		t.Error("Failure should match its kind with errors.Is")
	}

	if got := ExitCode(err); got != ExitNotFound {
		t.Errorf("ExitCode(failure) = %v, want %v", got, ExitNotFound)
	}
}

func TestWrapError(t *testing.T) {
	originalErr := ErrEngine
	wrapped := WrapError(originalErr, "additional context")

	if wrapped == nil {
		t.Fatal("WrapError should return non-nil error")
	}

	if !strings.Contains(wrapped.Error(), "additional context") {
		t.Error("WrapError should include additional context")
	}

	if !strings.Contains(wrapped.Error(), originalErr.Error()) {
		t.Error("WrapError should include original error message")
	}

	if !errors.Is(wrapped, ErrEngine) {
		t.Error("WrapError should preserve errors.Is matching")
	}

	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestTunnelState_Connected(t *testing.T) {
	tests := []struct {
		name     string
		state    *TunnelState
		expected bool
	}{
		{"nil", nil, false},
		{"connected", &TunnelState{State: "CONNECTED"}, true},
		{"waiting", &TunnelState{State: "WAIT"}, false},
		{"empty", &TunnelState{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Connected(); got != tt.expected {
				t.Errorf("Connected() = %v, want %v", got, tt.expected)
			}
		})
	}
}
