package rewriteprompt

import (
	"context"

	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/textspan"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "rewrite-prompt"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	rewritten, processed, replaced := rewrite(input.Prompt, input.References, input.Ignored, input.HasPii)

	fields := map[string]interface{}{
		"references": input.References.Len(),
		"ignored":    len(input.Ignored),
		"replaced":   replaced,
	}
	if replaced == 0 && input.References.Len() > 0 && h.config.WarnUnmatched {
		h.logger.Warn("no reference phrase found in prompt", fields)
	} else {
		h.logger.Debug("prompt rewritten", fields)
	}

	return &Output{Prompt: rewritten, Processed: processed, Replaced: replaced}, nil
}

// Rewrite substitutes a placeholder for every occurrence of each reference
// phrase, walking categories in precedence order. A phrase is handled once;
// text taken by an earlier phrase is never substituted again.
func Rewrite(prompt string, refs models.ReferenceSet, hasPii bool) (string, []string) {
	rewritten, processed, _ := rewrite(prompt, refs, nil, hasPii)
	return rewritten, processed
}

func rewrite(prompt string, refs models.ReferenceSet, ignored []string, hasPii bool) (string, []string, int) {
	spans := textspan.New(prompt)
	processed := make([]string, 0, refs.Len()+len(ignored))
	seen := make(map[string]struct{}, cap(processed))
	mark := func(phrase string) {
		seen[phrase] = struct{}{}
		processed = append(processed, phrase)
	}

	for _, phrase := range ignored {
		if _, done := seen[phrase]; !done && phrase != "" {
			mark(phrase)
		}
	}

	replaced := 0
	for _, category := range models.Categories {
		for _, ref := range refs.Get(category) {
			phrase := ref.Phrase(hasPii)
			if phrase == "" || len(ref.Options) == 0 {
				continue
			}
			if _, done := seen[phrase]; done {
				continue
			}
			mark(phrase)
			if ref.Ignored() {
				continue
			}
			replaced += spans.ReplaceAll(phrase, models.Placeholder(ref.Options[0].ID))
		}
	}
	return spans.Apply(), processed, replaced
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
