package synthesizefilter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-list-filter/internal/bundles"
	"ai-list-filter/internal/common/config"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		PostTypes: map[string]config.PostTypeConfig{
			"contacts": {
				StatusKey: "overall_status",
				Fields: map[string]config.FieldSpec{
					"assigned_to":    {Name: "Assigned To", Type: "user_select"},
					"overall_status": {Name: "Contact Status", Type: "key_select"},
				},
			},
		},
		Timeout: 5 * time.Second,
	}
}

func testBundle() bundles.Bundle {
	return bundles.Bundle{
		Brief:        []string{"Build a filter."},
		Structure:    []string{"Fields follow."},
		Instructions: []string{"Return JSON."},
	}
}

// chatServer answers every completion with content and counts the calls.
func chatServer(t *testing.T, calls *int32, content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func createLLMHandler(t *testing.T, url string) *Handler {
	client := llm.NewClient(config.LLMConfig{
		Endpoint:            url,
		Model:               "gpt-test",
		Timeout:             1000,
		MaxCompletionTokens: 1000,
		Temperature:         0.1,
		TopP:                1,
		Attempts:            2,
	}, logger.NewTestLogger(t))
	return NewHandler(createTestConfig(), client, testBundle(), logger.NewTestLogger(t))
}

// ==========================
// Synthesis Tests
// ==========================

func TestHandler_Synthesize(t *testing.T) {
	var calls int32
	server := chatServer(t, &calls, "```json\n[{\"field_key\":\"assigned_to\",\"field_value\":[\"@[####](12)\"],\"intent\":[\"EQUALS\",\"SOMETIMES\"]}]\n```")
	defer server.Close()

	h := createLLMHandler(t, server.URL)
	fields, err := h.Synthesize(context.Background(), "Contacts assigned to @[####](12)", "contacts")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Len(t, fields, 1)
	assert.Equal(t, "assigned_to", fields[0].FieldKey)
	assert.Equal(t, models.IntentList{models.IntentEquals}, fields[0].Intents)
}

func TestHandler_Synthesize_SendsFieldSpecs(t *testing.T) {
	var system string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		system = body.Messages[0].Content
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"tags\":\"x\"}]"}}]}`))
	}))
	defer server.Close()

	h := createLLMHandler(t, server.URL)
	_, err := h.Synthesize(context.Background(), "Contacts tagged x", "contacts")
	require.NoError(t, err)

	assert.Contains(t, system, "Build a filter.\nFields follow.\n{")
	assert.Contains(t, system, `"assigned_to":{"name":"Assigned To","type":"user_select"}`)
	assert.Contains(t, system, "}\nReturn JSON.")
}

func TestHandler_Synthesize_MalformedTwice(t *testing.T) {
	var calls int32
	server := chatServer(t, &calls, "I could not work out a filter for that.")
	defer server.Close()

	h := createLLMHandler(t, server.URL)
	_, err := h.Synthesize(context.Background(), "Contacts", "contacts")
	require.Error(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, errors.Is(err, ErrSynthesisFailed))
	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeMalformedModelOutput, stdErr.Code)
}

func TestHandler_Synthesize_EmptyJSONConsumesAttempts(t *testing.T) {
	var calls int32
	server := chatServer(t, &calls, "[]")
	defer server.Close()

	h := createLLMHandler(t, server.URL)
	_, err := h.Synthesize(context.Background(), "Contacts", "contacts")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHandler_Synthesize_UnknownPostType(t *testing.T) {
	var calls int32
	server := chatServer(t, &calls, "[]")
	defer server.Close()

	h := createLLMHandler(t, server.URL)
	_, err := h.Synthesize(context.Background(), "Contacts", "trainings")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeUnknownPostType, stdErr.Code)
}
