package createfilter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ai-list-filter/internal/common/aws"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/common/observability"
	"ai-list-filter/internal/datastore"
	"ai-list-filter/internal/models"
	"ai-list-filter/internal/workers/ai-filter/disambiguate"
	extractconnections "ai-list-filter/internal/workers/ai-filter/extract-connections"
	parsepromptfields "ai-list-filter/internal/workers/ai-filter/parse-prompt-fields"
	resolvereferences "ai-list-filter/internal/workers/ai-filter/resolve-references"
	rewriteprompt "ai-list-filter/internal/workers/ai-filter/rewrite-prompt"
)

const (
	TaskType           = "create-filter"
	SelectionsTaskType = "create-filter-with-selections"
)

type Detector interface {
	Obfuscate(ctx context.Context, prompt, postType string) (models.PiiResult, error)
}

type Extractor interface {
	Execute(ctx context.Context, input *extractconnections.Input) (*extractconnections.Output, error)
}

type FieldParser interface {
	Execute(ctx context.Context, input *parsepromptfields.Input) (*parsepromptfields.Output, error)
}

type Resolver interface {
	Execute(ctx context.Context, input *resolvereferences.Input) (*resolvereferences.Output, error)
}

type Disambiguator interface {
	Execute(ctx context.Context, input *disambiguate.Input) (*disambiguate.Output, error)
	Issue(postType string, pii models.PiiResult, autoResolved models.ReferenceSet, fields []models.FilterField) (string, error)
}

type Rewriter interface {
	Execute(ctx context.Context, input *rewriteprompt.Input) (*rewriteprompt.Output, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, prompt, postType string) ([]models.FilterField, error)
}

type Reshaper interface {
	Reshape(fields []models.FilterField, pii models.PiiResult, chosen models.ReferenceSet, ignored []string, statusKey string) models.QueryFields
}

// RunEvents receives one summary per finished run.
type RunEvents interface {
	Publish(ctx context.Context, event aws.RunEvent) error
}

// Stages are the pipeline steps in the order a run reaches them.
// FieldParser is only used in fields mode, Extractor, Rewriter and
// Synthesizer only in connections mode.
type Stages struct {
	Detector      Detector
	Extractor     Extractor
	FieldParser   FieldParser
	Resolver      Resolver
	Disambiguator Disambiguator
	Rewriter      Rewriter
	Synthesizer   Synthesizer
	Reshaper      Reshaper
}

type Handler struct {
	config       *Config
	stages       Stages
	lister       datastore.PostLister
	events       RunEvents
	obs          *observability.Observability
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the pipeline. events may be nil.
func NewHandler(config *Config, stages Stages, lister datastore.PostLister, events RunEvents, obs *observability.Observability, log logger.Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		stages:       stages,
		lister:       lister,
		events:       events,
		obs:          obs,
		errorHandler: commonerrors.NewErrorHandler(scoped),
		logger:       scoped,
	}
}

// Handle serves create-filter jobs.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, TaskType, commonerrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result, err := h.createFilter(ctx, &input)
	if err != nil {
		h.failJob(client, job, TaskType, err)
		return
	}
	h.completeJob(client, job, TaskType, result)
}

// HandleSelections serves create-filter-with-selections jobs.
func (h *Handler) HandleSelections(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"jobType":     SelectionsTaskType,
	})

	var input SelectionsInput
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, SelectionsTaskType, commonerrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.SelectionTimeout)
	defer cancel()

	result, err := h.createFilterWithSelections(ctx, &input)
	if err != nil {
		h.failJob(client, job, SelectionsTaskType, err)
		return
	}
	h.completeJob(client, job, SelectionsTaskType, result)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, taskType string, result *models.Result) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(map[string]interface{}{"result": result})

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, taskType string, err error) {
	stdErr := commonerrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(taskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

// Execute runs the pipeline for a new prompt. On failure the returned
// result is the error response and err carries the cause.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.Result, error) {
	return h.createFilter(ctx, input)
}

// ExecuteWithSelections continues a run with the user's selections.
func (h *Handler) ExecuteWithSelections(ctx context.Context, input *SelectionsInput) (*models.Result, error) {
	return h.createFilterWithSelections(ctx, input)
}
