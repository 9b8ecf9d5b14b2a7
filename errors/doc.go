// Package errors provides the structured error type shared by every
// chatstream package.
//
// Each failure carries a machine-readable code, a human message, a retryable
// flag and an optional cause. Streaming failures fall into five classes:
// BUILD_FAILED, TRANSPORT_FAILED, DECODE_FAILED, UPSTREAM_ERROR and CANCELED.
// Callers branch on the class with the Is* helpers rather than on strings.
package errors
