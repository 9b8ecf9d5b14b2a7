package chat

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"

	"github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/validation"
)

// RequestBuilder turns a Request into a transport descriptor.
type RequestBuilder struct {
	baseURL      string
	chatPath     string
	defaultModel string
	headers      map[string]string
}

// NewRequestBuilder creates a builder from cfg. cfg is not validated here;
// problems are reported by Build.
func NewRequestBuilder(cfg Config) *RequestBuilder {
	cfg.ApplyDefaults()
	return &RequestBuilder{
		baseURL:      cfg.BaseURL,
		chatPath:     cfg.ChatPath,
		defaultModel: cfg.Model,
		headers:      maps.Clone(cfg.Headers),
	}
}

// wireRequest is the body sent upstream; streaming is always on.
type wireRequest struct {
	Request
	Stream bool `json:"stream"`
}

// Build validates req and produces the POST descriptor with a serialized
// body and an absolute target URL. Every failure is a BUILD_FAILED error.
func (b *RequestBuilder) Build(req Request) (httpclient.Request, error) {
	if req.Model == "" {
		req.Model = b.defaultModel
	}
	if err := validation.Validate(req); err != nil {
		return httpclient.Request{}, errors.BuildFailed(err)
	}

	target, err := b.target()
	if err != nil {
		return httpclient.Request{}, errors.BuildFailed(err)
	}

	body, err := json.Marshal(wireRequest{Request: req, Stream: true})
	if err != nil {
		return httpclient.Request{}, errors.BuildFailed(fmt.Errorf("encode request body: %w", err))
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/x-ndjson",
	}
	maps.Copy(headers, b.headers)

	return httpclient.Request{
		Method:  http.MethodPost,
		Path:    target,
		Headers: headers,
		Body:    body,
	}, nil
}

// resolve joins path onto the base URL.
func (b *RequestBuilder) resolve(path string) (string, error) {
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", b.baseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", fmt.Errorf("invalid base url %q: must be an absolute http(s) URL", b.baseURL)
	}
	return base.JoinPath(path).String(), nil
}

func (b *RequestBuilder) target() (string, error) {
	return b.resolve(b.chatPath)
}
