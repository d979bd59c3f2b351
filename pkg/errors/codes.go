package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies a failure category. Codes are grouped by module prefix
// so that dashboards and alerts can aggregate per subsystem.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
)

// Embedding provider error codes.
const (
	// ErrCodeEmbeddingUnavailable marks an upstream embedding provider
	// failure or timeout that survived the local retry budget.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMB_001"

	// ErrCodeEmbeddingDimensionMismatch marks a batch whose vectors do not
	// share a single dimensionality; this is a caller error, never retried.
	ErrCodeEmbeddingDimensionMismatch ErrorCode = "EMB_002"

	ErrCodeEmbeddingRateLimited ErrorCode = "EMB_003"
)

// Semantic annotator error codes.
const (
	// ErrCodeAnnotationUnavailable marks a semantic enrichment failure.
	// It never aborts a pipeline run; affected clusters degrade to
	// placeholder descriptions.
	ErrCodeAnnotationUnavailable ErrorCode = "ANN_001"
	ErrCodeAnnotationRejected    ErrorCode = "ANN_002"
)

// Clustering engine error codes.
const (
	// ErrCodeDegenerateClustering marks input the density algorithm could
	// not partition; recovered by the single-cluster fallback.
	ErrCodeDegenerateClustering ErrorCode = "CLU_001"

	// ErrCodeInsufficientData marks an operation requested with fewer terms
	// or snapshots than it needs.
	ErrCodeInsufficientData ErrorCode = "CLU_002"

	ErrCodeEmptyCluster ErrorCode = "CLU_003"
)

// Temporal tracking error codes.
const (
	ErrCodeSnapshotOrderInvalid ErrorCode = "TMP_001"
	ErrCodeNoMatchingHistory    ErrorCode = "TMP_002"
)

// Analysis run error codes.
const (
	ErrCodeRunNotFound      ErrorCode = "RUN_001"
	ErrCodeRunAlreadyActive ErrorCode = "RUN_002"
	ErrCodeRunFailed        ErrorCode = "RUN_003"
)

// Ingestion boundary error codes.
const (
	ErrCodeExportNotFound   ErrorCode = "ING_001"
	ErrCodeExportParseError ErrorCode = "ING_002"
)

// Aliases used by factory helpers.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
	CodeUnknown      = ErrorCode("")
	CodeOK           = ErrorCode("OK")
)

// errorCodeHTTPStatus maps codes to HTTP statuses for the API layer.
var errorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeEmbeddingUnavailable:       http.StatusServiceUnavailable,
	ErrCodeEmbeddingDimensionMismatch: http.StatusBadRequest,
	ErrCodeEmbeddingRateLimited:       http.StatusTooManyRequests,

	ErrCodeAnnotationUnavailable: http.StatusServiceUnavailable,
	ErrCodeAnnotationRejected:    http.StatusBadGateway,

	ErrCodeDegenerateClustering: http.StatusInternalServerError,
	ErrCodeInsufficientData:     http.StatusBadRequest,
	ErrCodeEmptyCluster:         http.StatusBadRequest,

	ErrCodeSnapshotOrderInvalid: http.StatusBadRequest,
	ErrCodeNoMatchingHistory:    http.StatusNotFound,

	ErrCodeRunNotFound:      http.StatusNotFound,
	ErrCodeRunAlreadyActive: http.StatusConflict,
	ErrCodeRunFailed:        http.StatusInternalServerError,

	ErrCodeExportNotFound:   http.StatusNotFound,
	ErrCodeExportParseError: http.StatusBadRequest,
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether code maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code ("EMB", "CLU", ...).
func ModuleForCode(code ErrorCode) string {
	if i := strings.IndexByte(string(code), '_'); i > 0 {
		return string(code)[:i]
	}
	return "UNKNOWN"
}
