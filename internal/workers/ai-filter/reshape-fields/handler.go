package reshapefields

import (
	"context"

	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "reshape-fields"
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
	fields := h.Reshape(input.Fields, input.Pii, input.References, input.Ignored, h.config.StatusKey(input.PostType))
	return &Output{Fields: fields}, nil
}

// Reshape turns model fields into the list query. Values are mapped back
// to record ids or original text, qualified by their intents, and merged
// per key in first-seen order.
func (h *Handler) Reshape(fields []models.FilterField, pii models.PiiResult, chosen models.ReferenceSet, ignored []string, statusKey string) models.QueryFields {
	out, n := reshape(fields, pii, chosen, ignored, statusKey)

	if n.datesSkipped > 0 {
		h.logger.Warn("date intents are not supported, values skipped", map[string]interface{}{
			"fields": n.datesSkipped,
		})
	}
	if n.statusDropped {
		h.logger.Warn("status intent dropped, post type has no status field", nil)
	}
	h.logger.Debug("fields reshaped", map[string]interface{}{
		"inputFields":    len(fields),
		"queryFields":    len(out),
		"droppedIgnored": n.droppedIgnored,
	})
	return out
}

func reshape(fields []models.FilterField, pii models.PiiResult, chosen models.ReferenceSet, ignored []string, statusKey string) (models.QueryFields, notes) {
	var n notes
	out := make(models.QueryFields, 0, len(fields))
	skip := ignoredSet(pii, chosen, ignored)

	var status models.FieldIntent
	for _, f := range fields {
		if f.FieldKey == "" {
			continue
		}

		prefix := ""
		loopValues := true
		notSet := false
		for _, intent := range f.EffectiveIntents() {
			switch {
			case intent == models.IntentNotSet:
				loopValues = false
				notSet = true
			case intent == models.IntentAny:
				prefix += "*"
			case intent == models.IntentNotEquals:
				prefix = "-" + prefix
			case intent.IsStatus():
				status = intent
			case intent.IsDate():
				loopValues = false
				n.datesSkipped++
			}
		}

		values := []string{}
		if loopValues {
			for _, raw := range f.Values {
				if _, drop := skip[raw]; drop {
					n.droppedIgnored++
					continue
				}
				if _, drop := skip[pii.Deobfuscate(raw)]; drop {
					n.droppedIgnored++
					continue
				}
				values = append(values, prefix+resolveValue(raw, pii, chosen))
			}
		}

		if len(values) == 0 && !notSet {
			continue
		}
		out.Add(f.FieldKey, values...)
	}

	if status != "" {
		if statusKey == "" {
			n.statusDropped = true
		} else {
			out.Set(statusKey, status.StatusValue())
		}
	}
	return out, n
}

// resolveValue maps one raw value: a chosen reference's phrase becomes its
// record id, a placeholder its id, a token its original text. Anything else
// passes through with embedded tokens restored.
func resolveValue(raw string, pii models.PiiResult, chosen models.ReferenceSet) string {
	for _, category := range models.Categories {
		for _, ref := range chosen.Get(category) {
			if ref.PiiPrompt == raw && len(ref.Options) > 0 && !ref.Ignored() {
				return string(ref.Options[0].ID)
			}
		}
	}
	if id, ok := models.ParsePlaceholder(raw); ok {
		return string(id)
	}
	if original, ok := pii.Original(raw); ok {
		return original
	}
	return pii.Restore(raw)
}

func ignoredSet(pii models.PiiResult, chosen models.ReferenceSet, ignored []string) map[string]struct{} {
	skip := make(map[string]struct{}, len(ignored))
	add := func(phrase string) {
		if phrase == "" {
			return
		}
		skip[phrase] = struct{}{}
		if token, ok := pii.TokenFor(phrase); ok {
			skip[token] = struct{}{}
		}
	}
	for _, phrase := range ignored {
		add(phrase)
	}
	for _, category := range models.Categories {
		for _, ref := range chosen.Get(category) {
			if ref.Ignored() {
				add(ref.Prompt)
				add(ref.PiiPrompt)
			}
		}
	}
	return skip
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
