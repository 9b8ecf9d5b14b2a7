package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stream session failures.
const (
	// ErrCodeBuildFailed indicates the outbound request could not be constructed.
	ErrCodeBuildFailed ErrorCode = "BUILD_FAILED"
	// ErrCodeTransportFailed indicates the connection could not be opened or dropped mid-stream.
	ErrCodeTransportFailed ErrorCode = "TRANSPORT_FAILED"
	// ErrCodeDecodeFailed indicates a non-empty line did not match the chunk shape.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
	// ErrCodeUpstream indicates the server reported an error inside the stream.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrCodeCanceled indicates the consumer abandoned the stream.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)
