package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("resolve users: %w", NewQueryExecutionFailedError("users", cause))

	stdErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stderrors.Is(err, cause))
}

func TestNormalize(t *testing.T) {
	stdErr := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.False(t, stdErr.Retryable)

	orig := NewModuleDisabledError("dt_ai_list_filter")
	assert.Same(t, orig, Normalize(orig))
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"datastore retries", NewQueryExecutionFailedError("posts", stderrors.New("x")), "DATASTORE_UNAVAILABLE", 3},
		{"llm transport", NewLLMTransportError(stderrors.New("eof")), "LLM_UNAVAILABLE", 2},
		{"llm timeout", NewLLMTimeoutError(30 * time.Second), "LLM_UNAVAILABLE", 1},
		{"query timeout", NewQueryTimeoutError("list_posts"), "DATASTORE_UNAVAILABLE", 2},
		{"malformed output is terminal", NewMalformedModelOutputError("not json"), "PROMPT_PROCESSING_FAILED", 0},
		{"validation", NewValidationError("prompt is required"), "INVALID_FILTER_REQUEST", 0},
		{"unmapped code", NewAuthenticationError("bad token"), "AUTHENTICATION_ERROR", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeRequestValidationFailed))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeResumeTokenInvalid))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrCodeAuthentication))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrCodeModuleDisabled))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeMalformedModelOutput))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeQueryExecutionFailed))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeMalformedModelOutput))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "ACCESS", GetErrorCategory(ErrCodeModuleDisabled))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownPostType))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestToErrorVariables(t *testing.T) {
	bpmn := ConvertToBPMNError(NewResumeTokenInvalidError("signature mismatch"))
	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "INVALID_FILTER_REQUEST", vars["errorCode"])
	assert.Equal(t, "RESUME_TOKEN_INVALID", vars["originalErrorCode"])

	encoded, ok := encodeVariables(bpmn)
	require.True(t, ok)
	assert.NotContains(t, encoded, "signature mismatch")
}
