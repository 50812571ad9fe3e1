// Package common provides shared constants, types, and utilities
// used across the AWS VPN client CLI.
package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for profile and connection operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Input validation errors.
	ErrInvalidInput = errors.New("invalid input")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrConfigNotFound  = errors.New("config file not found")
	ErrDuplicateName   = errors.New("profile name already exists")
	ErrStorage         = errors.New("profile storage error")

	// Connection errors.
	ErrAuthFailed         = errors.New("authentication failed")
	ErrEngine             = errors.New("vpn engine error")
	ErrNoActiveConnection = errors.New("no active connection")
	ErrAlreadyConnected   = errors.New("connection already active")
)

// Exit codes reported by the CLI, one per failure kind so scripts can
// distinguish outcomes. Zero is success, one is any unclassified error.
const (
	ExitOK                 = 0
	ExitError              = 1
	ExitInvalidInput       = 2
	ExitNotFound           = 3
	ExitDuplicateName      = 4
	ExitStorage            = 5
	ExitAuthFailed         = 6
	ExitEngine             = 7
	ExitNoActiveConnection = 8
	ExitAlreadyConnected   = 9
)

// ExitCode maps an error to its process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrConfigNotFound):
		return ExitNotFound
	case errors.Is(err, ErrDuplicateName):
		return ExitDuplicateName
	case errors.Is(err, ErrStorage):
		return ExitStorage
	case errors.Is(err, ErrAuthFailed):
		return ExitAuthFailed
	case errors.Is(err, ErrEngine):
		return ExitEngine
	case errors.Is(err, ErrNoActiveConnection):
		return ExitNoActiveConnection
	case errors.Is(err, ErrAlreadyConnected):
		return ExitAlreadyConnected
	default:
		return ExitError
	}
}

// Failure builds an error whose message is exactly the formatted text and
// which matches kind with errors.Is. It keeps user-facing messages clean
// while the failure kind stays checkable for exit-code mapping.
func Failure(kind error, format string, args ...any) error {
	return &failure{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

type failure struct {
	kind error
	msg  string
}

func (f *failure) Error() string {
	return f.msg
}

func (f *failure) Unwrap() error {
	return f.kind
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
