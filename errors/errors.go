package errors

import (
	stderrors "errors"
	"fmt"
)

// maxLineDetail bounds how much of an offending line is kept in error details.
const maxLineDetail = 256

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if re-invoking the operation may succeed.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// --- Stream constructors ---

// BuildFailed wraps a request construction failure.
func BuildFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeBuildFailed, Message: "could not build chat request",
		Cause: cause,
	}
}

// TransportFailed wraps a connection-level failure. retryable is taken from
// the transport's own classification.
func TransportFailed(cause error, retryable bool) *AppError {
	return &AppError{
		Code: ErrCodeTransportFailed, Message: "chat stream transport failed",
		Retryable: retryable, Cause: cause,
	}
}

// DecodeFailed reports a line that could not be decoded into a chunk.
func DecodeFailed(line []byte, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDecodeFailed, Message: "malformed chat stream line",
		Details: map[string]any{"line": truncate(line)}, Cause: cause,
	}
}

// Upstream reports an error message sent by the server inside the stream.
func Upstream(message string) *AppError {
	return &AppError{
		Code: ErrCodeUpstream, Message: message,
		Retryable: true,
	}
}

// Canceled reports that the consumer abandoned the stream.
func Canceled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "chat stream canceled",
		Cause: cause,
	}
}

// --- Validation constructors ---

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		Details: map[string]any{"field": field},
	}
}

// --- Inspection ---

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsBuild reports whether err is a request construction failure.
func IsBuild(err error) bool { return CodeOf(err) == ErrCodeBuildFailed }

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool { return CodeOf(err) == ErrCodeTransportFailed }

// IsDecode reports whether err is a malformed-line failure.
func IsDecode(err error) bool { return CodeOf(err) == ErrCodeDecodeFailed }

// IsUpstream reports whether err is an in-stream server error.
func IsUpstream(err error) bool { return CodeOf(err) == ErrCodeUpstream }

// IsCanceled reports whether err is a consumer cancellation.
func IsCanceled(err error) bool { return CodeOf(err) == ErrCodeCanceled }

// IsRetryable reports whether err carries the retryable flag.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

func truncate(line []byte) string {
	if len(line) > maxLineDetail {
		return string(line[:maxLineDetail]) + "..."
	}
	return string(line)
}
