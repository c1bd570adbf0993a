package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noejunior792/hdl-ai-proteus/internal/pipeline"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
	"github.com/noejunior792/hdl-ai-proteus/internal/security"
)

// Error codes produced by the HTTP layer itself. Pipeline failures use the
// pipeline.Code* values.
const (
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeCircuitOpen  = "CIRCUIT_OPEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
)

// APIError represents a structured error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Hint         string `json:"hint,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// RespondError aborts the request with a structured error body.
func RespondError(c *gin.Context, status int, apiErr APIError) {
	if apiErr.RequestID == "" {
		apiErr.RequestID = c.GetString(ContextRequestID)
	}
	if apiErr.RetryAfterMS > 0 {
		c.Header("Retry-After", strconv.FormatInt((apiErr.RetryAfterMS+999)/1000, 10))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
}

// BadRequest sends a 400 error.
func BadRequest(c *gin.Context, message, hint string) {
	RespondError(c, http.StatusBadRequest, APIError{Code: pipeline.CodeBadRequest, Message: message, Hint: hint})
}

// NotFound sends a 404 error.
func NotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, APIError{Code: ErrCodeNotFound, Message: message})
}

// statusFor maps a pipeline error code onto an HTTP status.
func statusFor(code string, err error) int {
	switch code {
	case pipeline.CodeBadRequest, pipeline.CodeUnsupportedProvider, pipeline.CodeProviderConfig:
		return http.StatusBadRequest
	case pipeline.CodeProviderAuth:
		return http.StatusUnauthorized
	case pipeline.CodeProviderQuota:
		return http.StatusTooManyRequests
	case pipeline.CodeProviderNetwork:
		var ne *provider.NetworkError
		if errors.As(err, &ne) && ne.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case pipeline.CodeProviderResponse:
		return http.StatusBadGateway
	case pipeline.CodeAnalysisFailed:
		return http.StatusUnprocessableEntity
	case pipeline.CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorFor builds the APIError for err. Messages pass through the redactor
// so upstream error text can never echo a credential back.
func errorFor(err error) (int, APIError) {
	code := pipeline.ErrorCode(err)
	status := statusFor(code, err)

	apiErr := APIError{
		Code:    code,
		Message: security.Redact(err.Error()),
		Hint:    provider.Hint(err),
	}
	if status == http.StatusInternalServerError {
		apiErr.Message = "internal server error"
	}

	var qe *provider.QuotaError
	if errors.As(err, &qe) {
		retry := qe.RetryAfter
		if retry <= 0 {
			retry = 5 * time.Second
		}
		apiErr.RetryAfterMS = retry.Milliseconds()
	}
	return status, apiErr
}

// respondPipelineError maps err onto a status and structured body.
func respondPipelineError(c *gin.Context, err error) {
	status, apiErr := errorFor(err)
	_ = c.Error(err)
	RespondError(c, status, apiErr)
}
