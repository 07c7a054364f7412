package disambiguate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "disambiguate"
)

var (
	ErrInvalidInput   = errors.New("INVALID_INPUT")
	ErrResumeRejected = errors.New("RESUME_TOKEN_REJECTED")
)

type Handler struct {
	config *Config
	now    func() time.Time
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		now:    time.Now,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Issue signs the state of an ambiguous run. It returns an empty token when
// no secret is configured; the caller then relies on the echoed state.
func (h *Handler) Issue(postType string, pii models.PiiResult, autoResolved models.ReferenceSet, fields []models.FilterField) (string, error) {
	if len(h.config.Secret) == 0 {
		return "", nil
	}
	return Sign(h.config.Secret, ResumeState{
		PostType:     postType,
		Prompt:       pii.Prompt.Obfuscated,
		Mappings:     pii.Mappings,
		AutoResolved: autoResolved,
		Fields:       fields,
		IssuedAt:     h.now().Unix(),
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if input.PostType == "" {
		return nil, fmt.Errorf("%w: post type is required", ErrInvalidInput)
	}

	output := &Output{
		Pii:    echoedPii(input),
		Fields: input.FilteredFields,
	}
	autoResolved := models.NewReferenceSet()

	if input.Resume != "" || h.config.RequireToken {
		state, err := h.verify(input)
		if err != nil {
			h.logger.Warn("resume token rejected", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, fmt.Errorf("%w: %w", ErrResumeRejected, commonerrors.NewResumeTokenInvalidError(err.Error()))
		}
		pii := stateToPii(state, input.Prompt)
		output.Pii = &pii
		output.Fields = state.Fields
		output.Verified = true
		autoResolved = state.AutoResolved
	}

	lookup := models.NoPii(input.Prompt)
	if output.Pii != nil {
		lookup = *output.Pii
	}
	if !output.Verified && input.AutoResolved != nil {
		autoResolved = echoedAutoResolved(*input.AutoResolved, lookup)
	}
	chosen, ignored := Selections(input.Selections, lookup)
	output.References = chosen.Merge(withoutIgnored(autoResolved, ignored))
	output.Ignored = ignored

	h.logger.Info("selections applied", map[string]interface{}{
		"selections":   input.Selections.Len(),
		"chosen":       chosen.Len(),
		"ignored":      len(ignored),
		"autoResolved": autoResolved.Len(),
		"verified":     output.Verified,
	})

	return output, nil
}

func (h *Handler) verify(input *Input) (*ResumeState, error) {
	if input.Resume == "" {
		return nil, fmt.Errorf("resume token is required")
	}
	if len(h.config.Secret) == 0 {
		return nil, fmt.Errorf("resume tokens are not configured")
	}
	state, err := Verify(h.config.Secret, input.Resume, h.config.TTL, h.now())
	if err != nil {
		return nil, err
	}
	if state.PostType != input.PostType {
		return nil, fmt.Errorf("post type does not match")
	}
	restored := models.PiiResult{Mappings: state.Mappings}.Restore(state.Prompt)
	if restored != input.Prompt {
		return nil, fmt.Errorf("prompt does not match")
	}
	return state, nil
}

// Selections turns the user's answers into references. Categories are
// walked in precedence order and a phrase is taken once; later answers for
// the same phrase are dropped. Ignored answers come back as phrases, in both
// their plain and obfuscated forms.
func Selections(selections models.SelectionSet, pii models.PiiResult) (models.ReferenceSet, []string) {
	refs := models.NewReferenceSet()
	ignored := []string{}
	processed := map[string]struct{}{}

	for _, category := range models.Categories {
		for _, sel := range selections.Get(category) {
			phrase := strings.TrimSpace(sel.Prompt)
			if phrase == "" {
				continue
			}
			if _, done := processed[phrase]; done {
				continue
			}
			processed[phrase] = struct{}{}

			piiPrompt := phrase
			if token, ok := pii.TokenFor(phrase); ok {
				piiPrompt = token
			}

			if sel.Ignored() {
				ignored = append(ignored, phrase)
				if piiPrompt != phrase {
					ignored = append(ignored, piiPrompt)
				}
				continue
			}

			refs.Add(category, models.Reference{
				Prompt:    phrase,
				PiiPrompt: piiPrompt,
				Options:   []models.Option{{ID: sel.ID, Label: sel.Label}},
			})
		}
	}
	return refs, ignored
}

func withoutIgnored(refs models.ReferenceSet, ignored []string) models.ReferenceSet {
	if len(ignored) == 0 {
		return refs
	}
	skip := make(map[string]struct{}, len(ignored))
	for _, p := range ignored {
		skip[p] = struct{}{}
	}
	out := models.NewReferenceSet()
	for _, category := range models.Categories {
		for _, ref := range refs.Get(category) {
			_, plain := skip[ref.Prompt]
			_, masked := skip[ref.PiiPrompt]
			if plain || masked {
				continue
			}
			out.Add(category, ref)
		}
	}
	return out
}

// echoedAutoResolved keeps the echoed references that still point into the
// prompt and carry exactly one record.
func echoedAutoResolved(refs models.ReferenceSet, pii models.PiiResult) models.ReferenceSet {
	out := models.NewReferenceSet()
	for _, category := range models.Categories {
		for _, ref := range refs.Get(category) {
			if len(ref.Options) != 1 || ref.Options[0].ID == "" || ref.Ignored() {
				continue
			}
			plain := ref.Prompt != "" && strings.Contains(pii.Prompt.Original, ref.Prompt)
			masked := ref.PiiPrompt != "" && strings.Contains(pii.Prompt.Obfuscated, ref.PiiPrompt)
			if !plain && !masked {
				continue
			}
			if ref.PiiPrompt == "" {
				ref.PiiPrompt = ref.Prompt
			}
			out.Add(category, ref)
		}
	}
	return out
}

func echoedPii(input *Input) *models.PiiResult {
	if input.Pii == nil {
		return nil
	}
	pii := *input.Pii
	if pii.Mappings == nil {
		pii.Mappings = map[string]string{}
	}
	if pii.Pii == nil {
		pii.Pii = []string{}
	}
	if pii.Prompt.Original == "" {
		pii.Prompt.Original = input.Prompt
	}
	if pii.Prompt.Obfuscated == "" {
		pii.Prompt.Obfuscated = pii.Prompt.Original
	}
	return &pii
}

func stateToPii(state *ResumeState, prompt string) models.PiiResult {
	if len(state.Mappings) == 0 {
		return models.NoPii(prompt)
	}
	originals := make([]string, 0, len(state.Mappings))
	for _, original := range state.Mappings {
		originals = append(originals, original)
	}
	sort.Strings(originals)
	return models.PiiResult{
		Prompt:   models.PromptPair{Original: prompt, Obfuscated: state.Prompt},
		Pii:      originals,
		Mappings: state.Mappings,
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
