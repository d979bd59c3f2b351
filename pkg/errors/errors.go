// Package errors provides the structured error type shared by every layer of
// TermLens. AppError carries a typed code, a human-readable message, optional
// detail, and the wrapped cause, so that the API layer, the logger, and the
// metrics collector all classify failures the same way.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth caps the number of frames captured per error.
const stackDepth = 32

// captureStack renders the call stack starting above the factory function.
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used across TermLens. It
// satisfies the error interface and supports errors.Is / errors.As / Unwrap.
type AppError struct {
	// Code is the typed failure category.
	Code ErrorCode

	// Message is the primary description, safe to return to API callers.
	Message string

	// Detail carries supplementary context (term text, run id, ...) that
	// aids debugging without leaking internals to end users.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured at creation. It is excluded from
	// Error() output; structured logging middleware reads it directly.
	Stack string
}

// Error formats as "[CODE] message: detail", omitting detail when empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy with Detail set. Safe on nil.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy with Cause set. Safe on nil.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError wrapping err. Returns nil when err is nil so it
// can be used inline on repository and client calls. When err already carries
// an AppError and code is CodeUnknown, the original code is preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the code of the first AppError in err's chain, or
// CodeUnknown when none is present.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message, Stack: captureStack(1)}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Stack: captureStack(1)}
}

// Conflict constructs a CodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Stack: captureStack(1)}
}

// RateLimit constructs a CodeRateLimit AppError.
func RateLimit(message string) *AppError {
	return &AppError{Code: CodeRateLimit, Message: message, Stack: captureStack(1)}
}

// EmbeddingUnavailable constructs the canonical embedding-provider failure.
func EmbeddingUnavailable(message string) *AppError {
	return &AppError{Code: ErrCodeEmbeddingUnavailable, Message: message, Stack: captureStack(1)}
}

// AnnotationUnavailable constructs the canonical annotator failure.
func AnnotationUnavailable(message string) *AppError {
	return &AppError{Code: ErrCodeAnnotationUnavailable, Message: message, Stack: captureStack(1)}
}

// InsufficientData constructs a CLU_002 AppError.
func InsufficientData(message string) *AppError {
	return &AppError{Code: ErrCodeInsufficientData, Message: message, Stack: captureStack(1)}
}

// DegenerateClustering constructs a CLU_001 AppError.
func DegenerateClustering(message string) *AppError {
	return &AppError{Code: ErrCodeDegenerateClustering, Message: message, Stack: captureStack(1)}
}
