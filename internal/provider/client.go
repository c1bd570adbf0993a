package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error body ends up in messages.
const maxErrorBody = 512

// Option configures the HTTP side of an adapter.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the backend base URL (tests, proxies, sovereign clouds).
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient.Timeout = d
		}
	}
}

func buildOptions(defaultBase string, opts []Option) options {
	o := options{
		baseURL:    defaultBase,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// transport performs JSON round-trips and classifies failures for one backend.
type transport struct {
	kind   domain.ProviderKind
	client *http.Client
}

// do sends the request and decodes a 200 body into out.
func (t transport) do(ctx context.Context, method, rawURL string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", t.kind, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return &ConfigError{Provider: t.kind, Field: "endpoint", Reason: "is not a valid URL"}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return t.transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Provider: t.kind, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return t.statusError(resp.StatusCode, resp.Header, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &ResponseError{Provider: t.kind, Message: "malformed JSON body: " + err.Error()}
	}
	return nil
}

// transportError strips the request URL (which may carry credentials) from
// client errors before wrapping them.
func (t transport) transportError(err error) error {
	var uerr *url.Error
	timeout := false
	if errors.As(err, &uerr) {
		timeout = uerr.Timeout()
		err = uerr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		timeout = true
	}
	return &NetworkError{Provider: t.kind, Timeout: timeout, Err: err}
}

// statusError maps a non-2xx response onto the error taxonomy.
func (t transport) statusError(status int, header http.Header, body []byte) error {
	msg := errorMessage(body)
	lower := strings.ToLower(msg)

	// The status code decides first; body text only classifies the rest.
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &AuthError{Provider: t.kind, StatusCode: status, Message: msg}
	case status == http.StatusTooManyRequests,
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "exhausted"):
		return &QuotaError{
			Provider:   t.kind,
			StatusCode: status,
			Message:    msg,
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
		}
	case status == http.StatusRequestTimeout, status >= 500:
		return &NetworkError{Provider: t.kind, StatusCode: status, Err: errors.New(msg)}
	default:
		return &ResponseError{Provider: t.kind, StatusCode: status, Message: msg}
	}
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte) string {
	var env apiErrorBody
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Error.Status != "" {
			return env.Error.Status
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
