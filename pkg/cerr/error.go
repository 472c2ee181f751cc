package cerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"

	"github.com/feeta/feeta/pkg/clog"
)

type Error struct {
	Code Code
	Msg  string // shown to the user as-is
	Err  error  // kept for logs
	// Stack is captured only for codes that log at error level.
	Stack string
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if clog.ConnectCodeToLevel(code.ConnectCode()) == clog.LevelError {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code carried by err, OK for nil and Unknown for errors
// that were never classified.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return Unknown
}

// Message returns the user-facing text of err. Unclassified errors yield
// fallback so internal details never reach the user.
func Message(err error, fallback string) string {
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Msg != "" {
		return cerr.Msg
	}
	return fallback
}

// FromTransport classifies an error returned by an http.Client call.
func FromTransport(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(Canceled, "request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(DeadlineExceeded, "request timed out", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.Err == "operation was canceled" {
		return NewError(Canceled, "request canceled", err)
	}
	return NewError(Unavailable, "could not connect to server", err)
}
