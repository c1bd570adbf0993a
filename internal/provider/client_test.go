package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

func TestTransport_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		want   string
	}{
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key"}}`, IsAuthError, "AuthError"},
		{"forbidden", 403, `{"error":{"message":"denied"}}`, IsAuthError, "AuthError"},
		{"rate limited", 429, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, IsQuotaError, "QuotaError"},
		{"insufficient quota body", 400, `{"error":{"message":"You exceeded your current quota"}}`, IsQuotaError, "QuotaError"},
		{"unauthorized mentioning quota", 401, `{"error":{"message":"Invalid key for quota project my-proj"}}`, IsAuthError, "AuthError"},
		{"forbidden mentioning exhausted", 403, `{"error":{"message":"Key disabled after trial credits were exhausted","status":"PERMISSION_DENIED"}}`, IsAuthError, "AuthError"},
		{"server error", 500, `{"error":{"message":"internal"}}`, IsNetworkError, "NetworkError"},
		{"bad gateway plain", 502, `upstream down`, IsNetworkError, "NetworkError"},
		{"not found", 404, `{"error":{"message":"deployment not found"}}`, func(err error) bool {
			var re *ResponseError
			return errors.As(err, &re)
		}, "ResponseError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tr := transport{kind: domain.KindOpenAI, client: server.Client()}
			err := tr.do(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
			if !tt.check(err) {
				t.Errorf("do() error = %T %v, want %s", err, err, tt.want)
			}
		})
	}
}

func TestTransport_RetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := transport{kind: domain.KindGemini, client: server.Client()}
	err := tr.do(context.Background(), http.MethodGet, server.URL, nil, nil, nil)

	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want QuotaError", err)
	}
	if qe.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %s, want 12s", qe.RetryAfter)
	}
	if Hint(err) == "" {
		t.Error("Hint(err) is empty")
	}
}

func TestTransport_TimeoutIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	tr := transport{kind: domain.KindOpenAI, client: &http.Client{Timeout: 20 * time.Millisecond}}
	err := tr.do(context.Background(), http.MethodGet, server.URL+"/models?key=secret", nil, nil, nil)

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if !ne.Timeout {
		t.Error("NetworkError.Timeout = false, want true")
	}
	if msg := err.Error(); strings.Contains(msg, "secret") {
		t.Errorf("error message leaks the request URL: %s", msg)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable(timeout) = false, want true")
	}
}

func TestTransport_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	tr := transport{kind: domain.KindOpenAI, client: server.Client()}
	var out ChatResponse
	err := tr.do(context.Background(), http.MethodGet, server.URL, nil, nil, &out)

	var re *ResponseError
	if !errors.As(err, &re) {
		t.Errorf("error = %v, want ResponseError", err)
	}
	if IsRetryable(err) {
		t.Error("IsRetryable(ResponseError) = true, want false")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"entity and_gate is port", 5},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
