package httpclient

import (
	"errors"
	"testing"
)

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		code      ErrorCode
		retryable bool
	}{
		{200, true, 0, false},
		{204, true, 0, false},
		{400, false, ErrCodeValidation, false},
		{401, false, ErrCodeAuth, false},
		{403, false, ErrCodeAuth, false},
		{404, false, ErrCodeNotFound, false},
		{429, false, ErrCodeRateLimit, true},
		{500, false, ErrCodeServer, true},
		{503, false, ErrCodeServer, true},
		{302, false, ErrCodeServer, false},
	}
	for _, tt := range tests {
		got := ClassifyStatusCode(tt.status, nil)
		if tt.wantNil {
			if got != nil {
				t.Errorf("%d: expected nil, got %v", tt.status, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("%d: expected error", tt.status)
		}
		if got.Code != tt.code || got.Retryable != tt.retryable || got.StatusCode != tt.status {
			t.Errorf("%d: got code=%s retryable=%v", tt.status, got.Code, got.Retryable)
		}
	}
}

func TestClassifyStatusCode_Message(t *testing.T) {
	if got := ClassifyStatusCode(500, []byte(`{"error":"out of memory"}`)); got.Message != "out of memory" {
		t.Errorf("expected upstream message, got %q", got.Message)
	}
	if got := ClassifyStatusCode(500, []byte("<html>")); got.Message != "HTTP 500" {
		t.Errorf("expected generic message, got %q", got.Message)
	}
}

func TestError_Format(t *testing.T) {
	e := &Error{StatusCode: 404, Code: ErrCodeNotFound, Message: "HTTP 404"}
	if got := e.Error(); got != "httpclient: not_found (HTTP 404): HTTP 404" {
		t.Errorf("got %q", got)
	}
	inner := errors.New("connection refused")
	c := NewConnectionError(inner)
	if got := c.Error(); got != "httpclient: connection: connection refused" {
		t.Errorf("got %q", got)
	}
	if !errors.Is(c, inner) {
		t.Error("connection error must unwrap to its cause")
	}
	if ErrorCode(99).String() != "unknown" {
		t.Error("unknown codes should stringify as unknown")
	}
}
