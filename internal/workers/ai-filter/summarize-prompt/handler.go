package summarizeprompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "summarize-prompt"
	callSite = "summarize_prompt"
)

var (
	ErrInvalidInput      = errors.New("INVALID_INPUT")
	ErrObfuscationFailed = errors.New("OBFUSCATION_FAILED")
	ErrSummarizeFailed   = errors.New("SUMMARIZE_FAILED")
)

type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Obfuscator masks PII before the prompt leaves the process.
type Obfuscator interface {
	Obfuscate(ctx context.Context, prompt, postType string) (models.PiiResult, error)
}

type Handler struct {
	config     *Config
	llm        Completer
	obfuscator Obfuscator
	logger     logger.Logger
}

func NewHandler(config *Config, client Completer, obfuscator Obfuscator, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		llm:        client,
		obfuscator: obfuscator,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("%w: %v", ErrInvalidInput, err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		retries := int32(0)
		if stdErr, ok := commonerrors.As(err); ok {
			retries = int32(commonerrors.GetRetryCount(stdErr.Code))
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}

	pii := models.NoPii(input.Prompt)
	if h.obfuscator != nil {
		var err error
		pii, err = h.obfuscator.Obfuscate(ctx, input.Prompt, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrObfuscationFailed, err)
		}
	}

	content, err := h.llm.Complete(ctx, llm.Request{
		User:        pii.Prompt.Obfuscated,
		Temperature: llm.Temperature(h.config.Temperature),
	})
	metrics.LLMAttempts.WithLabelValues(callSite, llm.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSummarizeFailed, err)
	}

	summary := pii.Restore(strings.TrimSpace(content))

	h.logger.Info("prompt summarized", map[string]interface{}{
		"promptLength":  len(input.Prompt),
		"summaryLength": len(summary),
		"piiCount":      len(pii.Pii),
	})

	return &Output{Status: string(models.StatusSuccess), Summary: summary}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

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
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, retries int32) {
	errorCode := "UNKNOWN_ERROR"
	switch {
	case errors.Is(err, ErrInvalidInput):
		errorCode = "INVALID_INPUT"
	case errors.Is(err, ErrObfuscationFailed):
		errorCode = "OBFUSCATION_FAILED"
	case errors.Is(err, ErrSummarizeFailed):
		errorCode = "SUMMARIZE_FAILED"
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"error":     err.Error(),
		"errorCode": errorCode,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(errorCode).
		Send(context.Background())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
