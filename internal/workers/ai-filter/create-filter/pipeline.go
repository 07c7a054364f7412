package createfilter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ai-list-filter/internal/common/aws"
	"ai-list-filter/internal/common/config"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/models"
	"ai-list-filter/internal/workers/ai-filter/disambiguate"
	extractconnections "ai-list-filter/internal/workers/ai-filter/extract-connections"
	parsepromptfields "ai-list-filter/internal/workers/ai-filter/parse-prompt-fields"
	resolvereferences "ai-list-filter/internal/workers/ai-filter/resolve-references"
	rewriteprompt "ai-list-filter/internal/workers/ai-filter/rewrite-prompt"
)

// run is the state of one pipeline execution.
type run struct {
	id       string
	mode     string
	postType string
	maps     bool
	started  time.Time
	logger   logger.Logger

	pii        models.PiiResult
	references int
	fields     int
	results    int
}

func (h *Handler) newRun(postType string, maps bool) *run {
	id := uuid.NewString()
	return &run{
		id:       id,
		mode:     h.config.Mode,
		postType: postType,
		maps:     maps,
		started:  time.Now(),
		logger: h.logger.With(map[string]interface{}{
			"runId":    id,
			"mode":     h.config.Mode,
			"postType": postType,
		}),
	}
}

// step runs one stage inside a span and counts the transition when it
// succeeds.
func (h *Handler) step(ctx context.Context, r *run, stage string, fn func(ctx context.Context) error) error {
	ctx, span := h.obs.StartSpan(ctx, "pipeline."+stage, attribute.String("runId", r.id))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return err
	}
	h.transition(r, stage)
	return nil
}

func (h *Handler) transition(r *run, stage string) {
	metrics.PipelineStages.WithLabelValues(stage).Inc()
	r.logger.Debug("stage reached", map[string]interface{}{
		"stage":     stage,
		"elapsedMs": time.Since(r.started).Milliseconds(),
	})
}

func (h *Handler) validate(prompt, postType string) (config.PostTypeConfig, error) {
	if strings.TrimSpace(prompt) == "" {
		return config.PostTypeConfig{}, commonerrors.NewValidationError("prompt is required")
	}
	if postType == "" {
		return config.PostTypeConfig{}, commonerrors.NewValidationError("post_type is required")
	}
	pt, ok := h.config.PostTypes[postType]
	if !ok {
		return config.PostTypeConfig{}, commonerrors.NewUnknownPostTypeError(postType)
	}
	return pt, nil
}

func (h *Handler) createFilter(ctx context.Context, input *Input) (*models.Result, error) {
	postType, err := h.validate(input.Prompt, input.PostType)
	if err != nil {
		return nil, err
	}

	r := h.newRun(input.PostType, input.Maps)
	ctx, span := h.obs.StartSpan(ctx, "pipeline", attribute.String("runId", r.id), attribute.String("mode", r.mode))
	defer span.End()

	r.logger.Info("run started", logger.PromptFields(input.Prompt))

	result, err := h.startRun(ctx, r, input, postType)
	return h.endRun(ctx, r, result, err)
}

func (h *Handler) startRun(ctx context.Context, r *run, input *Input, postType config.PostTypeConfig) (*models.Result, error) {
	err := h.step(ctx, r, StagePiiDetected, func(ctx context.Context) error {
		pii, err := h.stages.Detector.Obfuscate(ctx, input.Prompt, input.PostType)
		r.pii = pii
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		connections models.Connections
		fields      []models.FilterField
	)
	if r.mode == config.ModeFields {
		err = h.step(ctx, r, StageFieldsParsed, func(ctx context.Context) error {
			out, err := h.stages.FieldParser.Execute(ctx, &parsepromptfields.Input{Prompt: r.pii.Prompt.Obfuscated, PostType: input.PostType})
			if err != nil {
				return err
			}
			fields, connections = out.Fields, out.Connections
			return nil
		})
	} else {
		err = h.step(ctx, r, StageConnectionsExtracted, func(ctx context.Context) error {
			out, err := h.stages.Extractor.Execute(ctx, &extractconnections.Input{Prompt: r.pii.Prompt.Obfuscated})
			if err != nil {
				return err
			}
			connections = out.Connections
			return nil
		})
	}
	if err != nil {
		return nil, err
	}

	var resolved *resolvereferences.Output
	err = h.step(ctx, r, StageResolved, func(ctx context.Context) error {
		out, err := h.stages.Resolver.Execute(ctx, &resolvereferences.Input{
			PostType:    input.PostType,
			Connections: connections,
			Pii:         r.pii,
		})
		resolved = out
		return err
	})
	if err != nil {
		return nil, err
	}
	r.references = resolved.Resolved.Len()

	if resolved.HasAmbiguous() {
		token, err := h.stages.Disambiguator.Issue(input.PostType, r.pii, resolved.AutoResolved, fields)
		if err != nil {
			return nil, err
		}
		h.transition(r, StageAmbiguous)

		pii := r.pii
		ambiguous := resolved.Ambiguous
		autoResolved := resolved.AutoResolved
		return &models.Result{
			Status:          models.StatusMultipleOptions,
			Prompt:          &models.PromptResult{Original: input.Prompt},
			Pii:             &pii,
			Connections:     &models.ConnectionsResult{Extracted: connections},
			MultipleOptions: &ambiguous,
			AutoResolved:    &autoResolved,
			Fields:          fields,
			Resume:          token,
		}, nil
	}

	return h.complete(ctx, r, input.Prompt, postType, resolved.AutoResolved, nil, fields, &connections)
}

func (h *Handler) createFilterWithSelections(ctx context.Context, input *SelectionsInput) (*models.Result, error) {
	postType, err := h.validate(input.Prompt, input.PostType)
	if err != nil {
		return nil, err
	}

	r := h.newRun(input.PostType, input.Maps)
	ctx, span := h.obs.StartSpan(ctx, "pipeline.selections", attribute.String("runId", r.id), attribute.String("mode", r.mode))
	defer span.End()

	r.logger.Info("run resumed", logger.Merge(logger.PromptFields(input.Prompt), map[string]interface{}{
		"selections": input.Selections.Len(),
		"hasResume":  input.Resume != "",
	}))

	result, err := h.resumeRun(ctx, r, input, postType)
	return h.endRun(ctx, r, result, err)
}

func (h *Handler) resumeRun(ctx context.Context, r *run, input *SelectionsInput, postType config.PostTypeConfig) (*models.Result, error) {
	var state *disambiguate.Output
	err := h.step(ctx, r, StageSelectionsApplied, func(ctx context.Context) error {
		out, err := h.stages.Disambiguator.Execute(ctx, &disambiguate.Input{
			Prompt:         input.Prompt,
			PostType:       input.PostType,
			Selections:     input.Selections,
			Pii:            input.Pii,
			FilteredFields: input.FilteredFields,
			AutoResolved:   input.AutoResolved,
			Resume:         input.Resume,
		})
		state = out
		return err
	})
	if err != nil {
		return nil, err
	}

	if state.Pii != nil {
		r.pii = *state.Pii
	} else {
		err = h.step(ctx, r, StagePiiDetected, func(ctx context.Context) error {
			pii, err := h.stages.Detector.Obfuscate(ctx, input.Prompt, input.PostType)
			r.pii = pii
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	r.references = state.References.Len()

	fields := state.Fields
	if r.mode == config.ModeFields && len(fields) == 0 {
		err = h.step(ctx, r, StageFieldsParsed, func(ctx context.Context) error {
			out, err := h.stages.FieldParser.Execute(ctx, &parsepromptfields.Input{Prompt: r.pii.Prompt.Obfuscated, PostType: input.PostType})
			if err != nil {
				return err
			}
			fields = out.Fields
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return h.complete(ctx, r, input.Prompt, postType, state.References, state.Ignored, fields, nil)
}

// complete runs the resolved half of the pipeline: rewrite and synthesis in
// connections mode, then reshaping and the list query.
func (h *Handler) complete(ctx context.Context, r *run, prompt string, postType config.PostTypeConfig, refs models.ReferenceSet, ignored []string, fields []models.FilterField, connections *models.Connections) (*models.Result, error) {
	result := &models.Result{
		Status: models.StatusSuccess,
		Prompt: &models.PromptResult{Original: prompt},
	}
	if connections != nil {
		result.Connections = &models.ConnectionsResult{Extracted: *connections}
	}

	if r.mode != config.ModeFields {
		var rewritten string
		err := h.step(ctx, r, StagePromptRewritten, func(ctx context.Context) error {
			out, err := h.stages.Rewriter.Execute(ctx, &rewriteprompt.Input{
				Prompt:     r.pii.Prompt.Obfuscated,
				References: refs,
				Ignored:    ignored,
				HasPii:     r.pii.HasPii(),
			})
			if err != nil {
				return err
			}
			rewritten = out.Prompt
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Prompt.Parsed = r.pii.Restore(rewritten)

		err = h.step(ctx, r, StageFilterSynthesized, func(ctx context.Context) error {
			synthesized, err := h.stages.Synthesizer.Synthesize(ctx, rewritten, r.postType)
			fields = synthesized
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	query := h.stages.Reshaper.Reshape(fields, r.pii, refs, ignored, postType.StatusKey)
	h.transition(r, StageFieldsReshaped)
	r.fields = len(query)

	var posts []models.Post
	err := h.step(ctx, r, StagePostsListed, func(ctx context.Context) error {
		listed, err := h.lister.ListPosts(ctx, r.postType, query)
		posts = listed
		return err
	})
	if err != nil {
		return nil, err
	}
	r.results = len(posts)

	pii := r.pii
	result.Pii = &pii
	result.Filter = &models.Filter{PostType: r.postType, Fields: query}
	if r.maps {
		points := models.PostsToGeoJSON(posts, r.postType)
		result.Points = &points
	} else {
		result.Posts = posts
	}
	return result, nil
}

// endRun records the outcome of a run. Failures become an error result
// whose message never carries prompt text; the cause is returned alongside
// for the caller to map.
func (h *Handler) endRun(ctx context.Context, r *run, result *models.Result, err error) (*models.Result, error) {
	status := string(models.StatusError)
	if err == nil && result != nil {
		status = string(result.Status)
		h.transition(r, StageDone)
	} else {
		h.transition(r, StageError)
		result = models.ErrorResult(h.errorMessage(err))
	}

	duration := time.Since(r.started)
	metrics.PipelineRuns.WithLabelValues(r.mode, status).Inc()
	h.obs.RecordRun(ctx, r.mode, status, duration)

	fields := map[string]interface{}{
		"status":     status,
		"piiCount":   len(r.pii.Pii),
		"references": r.references,
		"fields":     r.fields,
		"results":    r.results,
		"durationMs": duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Error("run failed", fields)
	} else {
		r.logger.Info("run finished", fields)
	}

	h.publish(ctx, r, status, duration)
	return result, err
}

func (h *Handler) publish(ctx context.Context, r *run, status string, duration time.Duration) {
	if h.events == nil {
		return
	}
	event := aws.RunEvent{
		RunID:        r.id,
		Mode:         r.mode,
		PostType:     r.postType,
		Status:       status,
		PiiCount:     len(r.pii.Pii),
		References:   r.references,
		FilterFields: r.fields,
		Results:      r.results,
		DurationMs:   duration.Milliseconds(),
		OccurredAt:   time.Now().UTC(),
	}
	if err := h.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Warn("run event not published", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// errorMessage fills the configured message with a reason derived from the
// error code only.
func (h *Handler) errorMessage(err error) string {
	reason := "internal error"
	if stdErr, ok := commonerrors.As(err); ok {
		switch commonerrors.GetErrorCategory(stdErr.Code) {
		case "AI":
			reason = "the language model did not return a usable response"
		case "DATABASE", "SEARCH":
			reason = "records could not be searched"
		case "VALIDATION":
			reason = stdErr.Message
		}
	}
	if strings.Contains(h.config.ErrorMessage, "%s") {
		return fmt.Sprintf(h.config.ErrorMessage, reason)
	}
	return h.config.ErrorMessage
}
