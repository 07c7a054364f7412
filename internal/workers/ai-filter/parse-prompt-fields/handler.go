package parsepromptfields

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-list-filter/internal/bundles"
	"ai-list-filter/internal/common/config"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "parse-prompt-fields"
	callSite = "parse_prompt_fields"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrParseFailed  = errors.New("FIELD_PARSING_FAILED")
)

// Field types whose values name a location or a user.
var (
	locationTypes = map[string]bool{"location": true, "location_meta": true}
	userTypes     = map[string]bool{"user_select": true}
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
		return nil, fmt.Errorf("%w: encode field specs: %v", ErrParseFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	var raw models.FilterFieldList
	req := llm.Request{System: h.bundle.System(string(specs)), User: input.Prompt}
	if err := h.llm.CompleteJSON(ctx, callSite, req, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	fields, unknown := models.KnownIntentsOnly(raw)
	if len(unknown) > 0 {
		h.logger.Warn("ignoring unknown intents", map[string]interface{}{
			"intents": unknown,
		})
	}
	connections := DeriveConnections(fields, postType)

	h.logger.Info("prompt fields parsed", map[string]interface{}{
		"postType":        input.PostType,
		"fieldCount":      len(fields),
		"locationCount":   len(connections.Locations),
		"connectionCount": len(connections.Connections),
	})

	return &Output{Fields: fields, Connections: connections}, nil
}

// DeriveConnections collects the values of location fields as locations
// and of user fields as connections. Fields the post type does not define
// are skipped.
func DeriveConnections(fields []models.FilterField, postType config.PostTypeConfig) models.Connections {
	connections := models.Connections{Locations: []string{}, Connections: []string{}}
	seen := map[string]bool{}
	for _, f := range fields {
		spec, ok := postType.Fields[f.FieldKey]
		if !ok {
			continue
		}
		for _, v := range f.Values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, placeholder := models.ParsePlaceholder(v); placeholder {
				continue
			}
			switch {
			case locationTypes[spec.Type] && !seen["l:"+v]:
				seen["l:"+v] = true
				connections.Locations = append(connections.Locations, v)
			case userTypes[spec.Type] && !seen["c:"+v]:
				seen["c:"+v] = true
				connections.Connections = append(connections.Connections, v)
			}
		}
	}
	return connections
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
