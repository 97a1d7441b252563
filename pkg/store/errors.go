package store

import (
	"errors"
	"fmt"
)

// ErrorKind is one of the domain-level error kinds from the system's
// error handling design. It is not a Go error type name; callers
// should use errors.As to recover an *Error and switch on Kind.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "NotFound"
	KindDatabase      ErrorKind = "Database"
	KindConfiguration ErrorKind = "Configuration"
	KindExecution     ErrorKind = "Execution"
	KindInternal      ErrorKind = "Internal"
)

// Error is the orchestrator's uniform error type, carrying one of the
// five domain-level kinds alongside a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Databasef(format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...)}
}

func Configurationf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func Executionf(format string, args ...any) *Error {
	return &Error{Kind: KindExecution, Message: fmt.Sprintf(format, args...)}
}

func Internalf(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal
// when err is not (or does not wrap) an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
