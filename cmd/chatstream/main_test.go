package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/chatstream/chat/chattest"
	"github.com/kbukum/chatstream/errors"
)

func chunkLine(content string, done bool) string {
	return fmt.Sprintf(`{"model":"llama3","message":{"role":"assistant","content":%q},"done":%t}`, content, done)
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	content := fmt.Sprintf(`name: chatstream-test
environment: development
logging:
  level: error
  format: json
chat:
  base_url: %s
  model: llama3
`, baseURL)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Pull(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Lines: []string{chunkLine("Hel", false), chunkLine("lo", false), chunkLine("", true)},
	})
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--config", writeConfig(t, srv.URL), "say", "hello"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if stdout.String() != "Hello\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || !strings.Contains(string(reqs[0].Body), `"content":"say hello"`) {
		t.Fatalf("requests = %+v", reqs)
	}
	if ua := reqs[0].Header.Get("User-Agent"); !strings.HasPrefix(ua, "chatstream-test/") {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "chatstream ") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_PushWithSystemAndModel(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Lines: []string{chunkLine("Hi", false), chunkLine("!", true)},
	})
	var stdout, stderr bytes.Buffer

	args := []string{"--config", writeConfig(t, srv.URL), "--push", "--model", "mistral", "--system", "be brief", "--temperature", "0.5", "hello"}
	if code := run(context.Background(), args, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if stdout.String() != "Hi!\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	body := string(srv.Requests()[0].Body)
	if !strings.Contains(body, `"model":"mistral"`) || !strings.Contains(body, `"role":"system"`) ||
		!strings.Contains(body, `"temperature":0.5`) {
		t.Errorf("request body = %s", body)
	}
}

func TestRun_UpstreamFailure(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Status: http.StatusInternalServerError, ErrorBody: `{"error":"boom"}`})
	for _, mode := range [][]string{nil, {"--push"}} {
		var stdout, stderr bytes.Buffer
		args := append([]string{"--config", writeConfig(t, srv.URL)}, mode...)
		if code := run(context.Background(), append(args, "hello"), &stdout, &stderr); code != exitFailure {
			t.Errorf("%v: exit code %d, want %d", mode, code, exitFailure)
		}
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr); code != exitUsage {
		t.Errorf("exit code %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "usage") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if code := run(context.Background(), []string{"--nope"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("unknown flag: exit code %d", code)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--config", writeConfig(t, "not-a-url"), "hi"}, &stdout, &stderr)
	if code != exitFailure {
		t.Errorf("exit code %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "base_url") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_Canceled(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Lines: []string{chunkLine("a", false)}, Hold: true})
	ctx, cancel := context.WithCancel(context.Background())

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"--config", writeConfig(t, srv.URL), "hi"}, &stdout, &stderr)
	}()
	deadline := time.After(5 * time.Second)
	for srv.Written() == 0 {
		select {
		case <-deadline:
			t.Fatal("server never wrote a line")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case code := <-done:
		if code != exitCanceled {
			t.Errorf("exit code %d, want %d", code, exitCanceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestFailureFields(t *testing.T) {
	fields := failureFields(errors.TransportFailed(fmt.Errorf("connection reset"), true))
	if fields["retryable"] != true || fields["error_code"] != "TRANSPORT_FAILED" || fields["operation"] != "stream" {
		t.Errorf("fields = %v", fields)
	}

	fields = failureFields(errors.DecodeFailed([]byte("{"), fmt.Errorf("bad json")))
	if fields["retryable"] != false || fields["error_code"] != "DECODE_FAILED" {
		t.Errorf("fields = %v", fields)
	}
}
