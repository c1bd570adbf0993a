package pipeline

import (
	"context"
	"errors"

	"github.com/noejunior792/hdl-ai-proteus/internal/analyzer"
	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/exporter"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
)

// Stages reported in StageError and metrics.
const (
	StageValidate = "validate"
	StageProvider = "provider"
	StageGenerate = "generate"
	StageAnalyze  = "analyze"
	StageCompile  = "compile"
	StageExport   = "export"
	StageStore    = "store"
)

// Error codes shared by events, metrics and the HTTP layer.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	CodeProviderConfig      = "PROVIDER_CONFIG"
	CodeProviderAuth        = "PROVIDER_AUTH"
	CodeProviderNetwork     = "PROVIDER_NETWORK"
	CodeProviderQuota       = "PROVIDER_QUOTA"
	CodeProviderResponse    = "PROVIDER_RESPONSE"
	CodeAnalysisFailed      = "ANALYSIS_FAILED"
	CodeExportFailed        = "EXPORT_FAILED"
	CodeCancelled           = "CANCELLED"
	CodeInternal            = "INTERNAL_ERROR"
)

// StageError records which stage aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	var (
		invalid  *domain.InvalidRequestError
		analysis *analyzer.AnalysisError
		export   *exporter.ExportFailedError
		response *provider.ResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return CodeBadRequest
	case provider.IsUnsupportedProvider(err):
		return CodeUnsupportedProvider
	case provider.IsConfigError(err), errors.Is(err, domain.ErrNoCredentials):
		return CodeProviderConfig
	case provider.IsAuthError(err):
		return CodeProviderAuth
	case provider.IsQuotaError(err):
		return CodeProviderQuota
	case provider.IsNetworkError(err):
		return CodeProviderNetwork
	case errors.As(err, &response):
		return CodeProviderResponse
	case errors.As(err, &analysis):
		return CodeAnalysisFailed
	case errors.As(err, &export):
		return CodeExportFailed
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeInternal
	}
}
