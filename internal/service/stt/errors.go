package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies a terminal stream error.
type Code string

const (
	// CodeNetwork is a transient transport failure. Callers may reconnect.
	CodeNetwork Code = "network"
	// CodeNoSpeech means nothing was heard yet. Not a failure.
	CodeNoSpeech Code = "no-speech"
	// CodeAborted means the stream was cancelled locally. Not a failure.
	CodeAborted Code = "aborted"
	// CodeOther is any other provider error. Surfaced to the operator.
	CodeOther Code = "other"
)

// Retryable reports whether a reconnect should be attempted.
func (c Code) Retryable() bool {
	return c == CodeNetwork
}

// Fatal reports whether the error should be shown to the operator.
func (c Code) Fatal() bool {
	return c == CodeOther
}

// Error is a classified stream error.
type Error struct {
	Code Code
	Err  error
}

// NewError wraps err with an explicit code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "stt: " + string(e.Code)
	}
	return fmt.Sprintf("stt %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an arbitrary stream error onto a Code.
func Classify(err error) Code {
	if err == nil {
		return ""
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}

	if errors.Is(err, context.Canceled) {
		return CodeAborted
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeNetwork
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return CodeNetwork
		case codes.Canceled:
			return CodeAborted
		case codes.OK:
		default:
			return CodeOther
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return CodeNetwork
	}
	return CodeOther
}
