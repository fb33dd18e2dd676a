// Package errors provides coded application errors shared by the engine, the
// sampler and the tooling.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an AppError.
type Code int

const (
	Unknown Code = iota
	Internal
	Unavailable
	Timeout
	InvalidReply
	StaleReply
	CaptureFailed
	ConfigInvalid
	CalibrationCorrupt
)

var codeNames = [...]string{
	Unknown:            "UNKNOWN",
	Internal:           "INTERNAL",
	Unavailable:        "UNAVAILABLE",
	Timeout:            "TIMEOUT",
	InvalidReply:       "INVALID_REPLY",
	StaleReply:         "STALE_REPLY",
	CaptureFailed:      "CAPTURE_FAILED",
	ConfigInvalid:      "CONFIG_INVALID",
	CalibrationCorrupt: "CALIBRATION_CORRUPT",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[Unknown]
	}
	return codeNames[c]
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:            codes.Unknown,
	Internal:           codes.Internal,
	Unavailable:        codes.Unavailable,
	Timeout:            codes.DeadlineExceeded,
	InvalidReply:       codes.DataLoss,
	StaleReply:         codes.DataLoss,
	CaptureFailed:      codes.Unavailable,
	ConfigInvalid:      codes.InvalidArgument,
	CalibrationCorrupt: codes.FailedPrecondition,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts a gRPC error into an AppError (best effort).
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}
	var code Code
	switch st.Code() {
	case codes.Unavailable:
		code = Unavailable
	case codes.DeadlineExceeded, codes.Canceled:
		code = Timeout
	case codes.InvalidArgument:
		code = ConfigInvalid
	case codes.DataLoss:
		code = InvalidReply
	case codes.Internal:
		code = Internal
	default:
		code = Unknown
	}
	return &AppError{Code: code, Message: st.Message(), Cause: err}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTransient reports whether the failure is expected to clear on the next sample.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case Unavailable, Timeout, InvalidReply, StaleReply, CaptureFailed:
		return true
	default:
		return false
	}
}
