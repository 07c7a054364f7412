package extractconnections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-list-filter/internal/bundles"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "extract-connections"
	callSite = "extract_connections"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrExtractionFailed = errors.New("CONNECTION_EXTRACTION_FAILED")
)

// Completer is the part of llm.Client this stage needs.
type Completer interface {
	CompleteJSON(ctx context.Context, callSite string, req llm.Request, out interface{}) error
}

type Handler struct {
	config *Config
	llm    Completer
	bundle bundles.Bundle
	logger logger.Logger
}

func NewHandler(config *Config, client Completer, bundle bundles.Bundle, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		llm:    client,
		bundle: bundle,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	var raw models.Connections
	req := llm.Request{System: h.bundle.System(""), User: input.Prompt}
	if err := h.llm.CompleteJSON(ctx, callSite, req, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	connections := models.Connections{
		Locations:   normalize(raw.Locations),
		Connections: normalize(raw.Connections),
	}

	h.logger.Info("connections extracted", map[string]interface{}{
		"locationCount":   len(connections.Locations),
		"connectionCount": len(connections.Connections),
	})

	return &Output{Connections: connections}, nil
}

// normalize trims entries and drops blanks and repeats, keeping model order.
func normalize(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
