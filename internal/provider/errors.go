package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// ConfigError reports a missing or malformed kind-specific field.
type ConfigError struct {
	Provider domain.ProviderKind
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config: %s %s", e.Provider, e.Field, e.Reason)
}

// Hint suggests how to fix the configuration.
func (e *ConfigError) Hint() string {
	return fmt.Sprintf("set provider_config.%s for %s", e.Field, e.Provider)
}

// UnsupportedProviderError is returned when a kind string matches no backend.
type UnsupportedProviderError struct {
	Kind  string
	Valid []string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider type %q, valid types: %s", e.Kind, strings.Join(e.Valid, ", "))
}

// Hint lists the accepted kinds.
func (e *UnsupportedProviderError) Hint() string {
	return "use one of: " + strings.Join(e.Valid, ", ")
}

// AuthError means the backend rejected the credentials.
type AuthError struct {
	Provider   domain.ProviderKind
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed [%d]: %s", e.Provider, e.StatusCode, e.Message)
}

// Hint points at the credential fields.
func (e *AuthError) Hint() string {
	return "check api_key (and endpoint/api_version for Azure) for " + string(e.Provider)
}

// QuotaError means the backend throttled or the account ran out of quota.
type QuotaError struct {
	Provider   domain.ProviderKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota or rate limit exceeded [%d]: %s", e.Provider, e.StatusCode, e.Message)
}

// Hint suggests waiting or raising limits.
func (e *QuotaError) Hint() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retry after %s or raise the %s quota", e.RetryAfter, e.Provider)
	}
	return "wait and retry, or raise the " + string(e.Provider) + " quota"
}

// NetworkError covers transport failures, timeouts and 5xx responses.
type NetworkError struct {
	Provider   domain.ProviderKind
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service error [%d]: %v", e.Provider, e.StatusCode, e.Err)
	}
	if e.Timeout {
		return fmt.Sprintf("%s request timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Hint suggests checking reachability.
func (e *NetworkError) Hint() string {
	return "check the endpoint URL and network connectivity to " + string(e.Provider)
}

// ResponseError covers other rejections and malformed bodies.
type ResponseError struct {
	Provider   domain.ProviderKind
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error [%d]: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s invalid response: %s", e.Provider, e.Message)
}

// Hint suggests checking model and deployment names.
func (e *ResponseError) Hint() string {
	return "check model_name / deployment_name for " + string(e.Provider)
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsUnsupportedProvider reports whether err is an UnsupportedProviderError.
func IsUnsupportedProvider(err error) bool {
	var e *UnsupportedProviderError
	return errors.As(err, &e)
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsQuotaError reports whether err is a QuotaError.
func IsQuotaError(err error) bool {
	var e *QuotaError
	return errors.As(err, &e)
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	return IsNetworkError(err) || IsQuotaError(err)
}

// Hint returns the actionable hint carried by err, if any.
func Hint(err error) string {
	var h interface{ Hint() string }
	if errors.As(err, &h) {
		return h.Hint()
	}
	return ""
}
