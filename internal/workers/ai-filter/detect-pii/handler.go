package detectpii

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "detect-pii"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrDictionaryFailed = errors.New("DICTIONARY_LOOKUP_FAILED")
)

// Dictionary supplies the known record titles and location names that the
// name and location detectors compare against.
type Dictionary interface {
	PostTitles(ctx context.Context, postType string) ([]string, error)
	LocationNames(ctx context.Context) ([]string, error)
}

type Handler struct {
	config     *Config
	dictionary Dictionary
	obfuscator *Obfuscator
	logger     logger.Logger
}

func NewHandler(config *Config, dictionary Dictionary, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		dictionary: dictionary,
		obfuscator: NewObfuscator(),
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
		if errors.Is(err, ErrDictionaryFailed) {
			retries = 2
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

	pii, err := h.Detect(ctx, input.Prompt, input.PostType)
	if err != nil {
		return nil, err
	}

	result := h.obfuscator.Obfuscate(input.Prompt, pii)

	h.logger.Info("prompt obfuscated", logger.Merge(logger.PromptFields(input.Prompt), map[string]interface{}{
		"piiCount":   len(result.Pii),
		"tokenCount": len(result.Mappings),
		"postType":   input.PostType,
	}))

	return &Output{Pii: result}, nil
}

// Detect returns every PII span in prompt, de-duplicated in first-seen
// order across the name, location, email and phone detectors.
func (h *Handler) Detect(ctx context.Context, prompt, postType string) ([]string, error) {
	findings, err := h.detect(ctx, prompt, postType)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(findings))
	pii := make([]string, 0, len(findings))
	for _, f := range findings {
		if _, dup := seen[f.Text]; dup {
			continue
		}
		seen[f.Text] = struct{}{}
		pii = append(pii, f.Text)
		metrics.PIITokensDetected.WithLabelValues(string(f.Kind)).Inc()
	}
	return pii, nil
}

func (h *Handler) detect(ctx context.Context, prompt, postType string) ([]Finding, error) {
	var findings []Finding
	add := func(kind Kind, texts []string) {
		for _, t := range texts {
			if t != "" {
				findings = append(findings, Finding{Kind: kind, Text: t})
			}
		}
	}

	if h.dictionary != nil {
		if postType != "" {
			titles, err := h.dictionary.PostTitles(ctx, postType)
			if err != nil {
				return nil, fmt.Errorf("%w: titles: %v", ErrDictionaryFailed, err)
			}
			add(KindName, findNames(prompt, titles, h.config.Names))
		}

		locations, err := h.dictionary.LocationNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: locations: %v", ErrDictionaryFailed, err)
		}
		add(KindLocation, findLocations(prompt, locations, h.config.Locations))
	} else {
		add(KindLocation, findLocations(prompt, nil, h.config.Locations))
	}

	add(KindEmail, findEmails(prompt))
	add(KindPhone, findPhones(prompt))
	return findings, nil
}

// Obfuscate runs detection and obfuscation for one prompt.
func (h *Handler) Obfuscate(ctx context.Context, prompt, postType string) (models.PiiResult, error) {
	output, err := h.execute(ctx, &Input{Prompt: prompt, PostType: postType})
	if err != nil {
		return models.PiiResult{}, err
	}
	return output.Pii, nil
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
	if errors.Is(err, ErrInvalidInput) {
		errorCode = "INVALID_INPUT"
	} else if errors.Is(err, ErrDictionaryFailed) {
		errorCode = "DICTIONARY_LOOKUP_FAILED"
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
