// Package llm is the chat-completions client shared by the pipeline stages
// that call the external model.
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"ai-list-filter/internal/common/config"
	"ai-list-filter/internal/common/errors"
	commonhttp "ai-list-filter/internal/common/http"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
)

const chatPath = "/chat/completions"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion. An empty System sends the user message alone.
// A nil Temperature uses the configured default.
type Request struct {
	System      string
	User        string
	Temperature *float64
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

type chatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
	Temperature         float64   `json:"temperature"`
	TopP                float64   `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type Client struct {
	cfg    config.LLMConfig
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30000
	}
	return &Client{
		cfg:  cfg,
		http: commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
		logger: log.With(map[string]interface{}{
			"component": "llm",
			"model":     cfg.Model,
		}),
	}
}

func (c *Client) url() string {
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/")
	if strings.HasSuffix(endpoint, chatPath) {
		return endpoint
	}
	return endpoint + chatPath
}

// Complete sends one request and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	timeout := config.GetDuration(c.cfg.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.User})

	body := chatRequest{
		Model:               c.cfg.Model,
		Messages:            messages,
		MaxCompletionTokens: c.cfg.MaxCompletionTokens,
		Temperature:         temperature,
		TopP:                c.cfg.TopP,
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	data, err := c.http.PostJSON(ctx, c.url(), headers, body)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewLLMTimeoutError(timeout)
		}
		return "", errors.NewLLMTransportError(err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", errors.NewMalformedModelOutputError("response envelope is not JSON")
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewMalformedModelOutputError("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON calls the model until its cleaned content decodes into out as
// non-empty JSON, up to the configured number of attempts. Attempts follow
// each other immediately. The last error is returned when all fail.
func (c *Client) CompleteJSON(ctx context.Context, callSite string, req Request, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		start := time.Now()
		err := c.attemptJSON(ctx, req, out)
		outcome := Outcome(err)
		metrics.LLMAttempts.WithLabelValues(callSite, outcome).Inc()

		fields := map[string]interface{}{
			"callSite":   callSite,
			"attempt":    attempt,
			"outcome":    outcome,
			"durationMs": time.Since(start).Milliseconds(),
		}
		if err == nil {
			c.logger.Debug("model call succeeded", fields)
			return nil
		}

		fields["error"] = err.Error()
		c.logger.Warn("model call failed", fields)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *Client) attemptJSON(ctx context.Context, req Request, out interface{}) error {
	content, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	cleaned := Clean(content)
	if !IsNonEmptyJSON(cleaned) {
		return errors.NewMalformedModelOutputError("content is not non-empty JSON")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return errors.NewMalformedModelOutputError("content does not match the expected shape")
	}
	return nil
}

// Outcome labels a model call result for the attempts metric.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if stdErr, ok := errors.As(err); ok {
		switch stdErr.Code {
		case errors.ErrCodeLLMTimeout:
			return "timeout"
		case errors.ErrCodeMalformedModelOutput:
			return "malformed"
		}
	}
	return "transport"
}

var cleaner = strings.NewReplacer(`\n`, "", `\r`, "")

// Clean normalises model content before it is parsed. Surrounding space and
// literal \n and \r sequences are removed, then a Markdown code fence is
// stripped. Escaped quotes are kept so string values stay valid JSON.
func Clean(content string) string {
	content = cleaner.Replace(strings.TrimSpace(content))
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		} else {
			content = strings.TrimLeft(strings.TrimPrefix(content, "```"), "jsonJSON")
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

// IsNonEmptyJSON reports whether s is valid JSON other than null, an empty
// object, an empty array or an empty string.
func IsNonEmptyJSON(s string) bool {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	case string:
		return t != ""
	}
	return true
}
