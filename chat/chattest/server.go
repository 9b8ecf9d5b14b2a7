package chattest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Script describes how the fake upstream answers POST /api/chat.
type Script struct {
	// Status other than 0 or 200 answers with ErrorBody and no stream.
	Status    int
	ErrorBody string
	// Lines are written one per flush, each followed by "\n".
	Lines []string
	// Delay is slept before each line.
	Delay time.Duration
	// Drop aborts the connection after Lines instead of closing cleanly.
	Drop bool
	// Hold keeps the response open after Lines until the client goes away.
	Hold bool
}

// CapturedRequest is a request received by the Server.
type CapturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Server is a fake chat upstream.
type Server struct {
	URL string

	ts          *httptest.Server
	mu          sync.Mutex
	script      Script
	requests    []CapturedRequest
	written     atomic.Int64
	disconnects chan struct{}
}

// NewServer starts a server answering with script. It is closed when the
// test ends.
func NewServer(t testing.TB, script Script) *Server {
	t.Helper()
	s := &Server{script: script, disconnects: make(chan struct{}, 16)}

	engine := gin.New()
	engine.POST("/api/chat", s.handleChat)
	engine.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": "0.0.0-test"})
	})

	s.ts = httptest.NewServer(engine)
	s.URL = s.ts.URL
	t.Cleanup(s.ts.Close)
	return s
}

// SetScript replaces the script for later requests.
func (s *Server) SetScript(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// Requests returns the chat requests received so far.
func (s *Server) Requests() []CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CapturedRequest(nil), s.requests...)
}

// Written is the number of lines flushed to clients so far.
func (s *Server) Written() int64 { return s.written.Load() }

// Disconnected receives once for every held or delayed response whose
// client went away.
func (s *Server) Disconnected() <-chan struct{} { return s.disconnects }

func (s *Server) handleChat(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)

	s.mu.Lock()
	s.requests = append(s.requests, CapturedRequest{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	script := s.script
	s.mu.Unlock()

	if script.Status != 0 && script.Status != http.StatusOK {
		c.Data(script.Status, "application/json", []byte(script.ErrorBody))
		return
	}

	ctx := c.Request.Context()
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	for _, line := range script.Lines {
		if script.Delay > 0 {
			select {
			case <-time.After(script.Delay):
			case <-ctx.Done():
				s.disconnects <- struct{}{}
				return
			}
		}
		if _, err := c.Writer.WriteString(line + "\n"); err != nil {
			return
		}
		c.Writer.Flush()
		s.written.Add(1)
	}

	switch {
	case script.Drop:
		// net/http closes the connection without terminating the chunked body.
		panic(http.ErrAbortHandler)
	case script.Hold:
		c.Writer.Flush()
		<-ctx.Done()
		s.disconnects <- struct{}{}
	}
}
