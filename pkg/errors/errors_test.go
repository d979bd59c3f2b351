package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesCodeAndMessage(t *testing.T) {
	err := New(ErrCodeEmbeddingUnavailable, "provider timed out")
	assert.Equal(t, ErrCodeEmbeddingUnavailable, err.Code)
	assert.Equal(t, "[EMB_001] provider timed out", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeDatabaseError, "query failed"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	inner := New(ErrCodeDegenerateClustering, "all embeddings identical")
	outer := Wrap(inner, CodeUnknown, "clustering step failed")
	assert.Equal(t, ErrCodeDegenerateClustering, outer.Code)
	assert.True(t, stderrors.Is(outer, outer))
	assert.Equal(t, inner, stderrors.Unwrap(outer))
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	base := InsufficientData("need at least one term")
	detailed := base.WithDetail("run=abc123")
	assert.Empty(t, base.Detail)
	assert.Equal(t, "run=abc123", detailed.Detail)
	assert.Contains(t, detailed.Error(), "run=abc123")
}

func TestWithDetail_NilSafe(t *testing.T) {
	var ae *AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("y")))
}

func TestIsCode_TraversesChain(t *testing.T) {
	inner := AnnotationUnavailable("llm returned 503")
	mid := fmt.Errorf("annotating cluster 4: %w", inner)
	outer := Wrap(mid, ErrCodeRunFailed, "enrichment incomplete")

	assert.True(t, IsCode(outer, ErrCodeAnnotationUnavailable))
	assert.True(t, IsCode(outer, ErrCodeRunFailed))
	assert.False(t, IsCode(outer, ErrCodeEmbeddingUnavailable))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeInsufficientData, GetCode(InsufficientData("x")))
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeEmbeddingUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInsufficientData, http.StatusBadRequest},
		{ErrCodeRunNotFound, http.StatusNotFound},
		{ErrCodeDegenerateClustering, http.StatusInternalServerError},
		{ErrorCode("NOPE_999"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusForCode(tt.code), string(tt.code))
	}
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "EMB", ModuleForCode(ErrCodeEmbeddingUnavailable))
	assert.Equal(t, "CLU", ModuleForCode(ErrCodeInsufficientData))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("weird")))
}

func TestClientServerClassification(t *testing.T) {
	require.True(t, IsClientError(ErrCodeBadRequest))
	require.False(t, IsServerError(ErrCodeBadRequest))
	require.True(t, IsServerError(ErrCodeRunFailed))
}
