package synthesizefilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-list-filter/internal/bundles"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "synthesize-filter"
	callSite = "synthesize_filter"
)

var (
	ErrInvalidInput    = errors.New("INVALID_INPUT")
	ErrSynthesisFailed = errors.New("FILTER_SYNTHESIS_FAILED")
)

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
	postType, ok := h.config.PostTypes[input.PostType]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, commonerrors.NewUnknownPostTypeError(input.PostType))
	}

	specs, err := json.Marshal(postType.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode field specs: %v", ErrSynthesisFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	var raw models.FilterFieldList
	req := llm.Request{System: h.bundle.System(string(specs)), User: input.Prompt}
	if err := h.llm.CompleteJSON(ctx, callSite, req, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	fields, unknown := models.KnownIntentsOnly(raw)
	if len(unknown) > 0 {
		h.logger.Warn("ignoring unknown intents", map[string]interface{}{
			"intents": unknown,
		})
	}

	var unknownKeys int
	for _, f := range fields {
		if _, ok := postType.Fields[f.FieldKey]; !ok {
			unknownKeys++
		}
	}

	h.logger.Info("filter synthesized", map[string]interface{}{
		"postType":    input.PostType,
		"fieldCount":  len(fields),
		"unknownKeys": unknownKeys,
	})

	return &Output{Fields: fields}, nil
}

// Synthesize asks the model for the field filter of a rewritten prompt.
func (h *Handler) Synthesize(ctx context.Context, prompt, postType string) ([]models.FilterField, error) {
	output, err := h.execute(ctx, &Input{Prompt: prompt, PostType: postType})
	if err != nil {
		return nil, err
	}
	return output.Fields, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
