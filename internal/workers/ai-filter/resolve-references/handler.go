package resolvereferences

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/datastore"
	"ai-list-filter/internal/models"
)

const (
	TaskType = "resolve-references"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrResolutionFailed = errors.New("REFERENCE_RESOLUTION_FAILED")
)

// Searchers are the datastore lookups behind each category.
type Searchers struct {
	Locations datastore.LocationSearcher
	Users     datastore.UserSearcher
	Posts     datastore.PostSearcher
}

type Handler struct {
	config    *Config
	searchers Searchers
	logger    logger.Logger
}

func NewHandler(config *Config, searchers Searchers, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		searchers: searchers,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// lookup is one search whose result lands in a fixed slot.
type lookup struct {
	category models.Category
	phrase   string
	options  []models.Option
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.PostType == "" {
		return nil, fmt.Errorf("%w: post type is required", ErrInvalidInput)
	}

	lookups := make([]*lookup, 0, len(input.Connections.Locations)+2*len(input.Connections.Connections))
	for _, phrase := range input.Connections.Locations {
		lookups = append(lookups, &lookup{category: models.CategoryLocations, phrase: phrase})
	}
	for _, phrase := range input.Connections.Connections {
		lookups = append(lookups, &lookup{category: models.CategoryUsers, phrase: phrase})
	}
	for _, phrase := range input.Connections.Connections {
		lookups = append(lookups, &lookup{category: models.CategoryPosts, phrase: phrase})
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if !h.config.Concurrent {
		g.SetLimit(1)
	}
	for _, l := range lookups {
		g.Go(func() error {
			options, err := h.search(gctx, l.category, input.Pii.Deobfuscate(l.phrase), input.PostType)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrResolutionFailed, l.category, err)
			}
			l.options = options
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	output := &Output{
		Resolved:     models.NewReferenceSet(),
		Ambiguous:    models.NewReferenceSet(),
		AutoResolved: models.NewReferenceSet(),
	}
	for _, l := range lookups {
		metrics.ResolverCandidates.WithLabelValues(string(l.category)).Observe(float64(len(l.options)))
		if len(l.options) == 0 {
			continue
		}

		ref := models.Reference{
			Prompt:    input.Pii.Deobfuscate(l.phrase),
			PiiPrompt: l.phrase,
			Options:   l.options,
		}
		output.Resolved.Add(l.category, ref)
		if h.ambiguous(len(l.options)) {
			output.Ambiguous.Add(l.category, ref)
		} else {
			output.AutoResolved.Add(l.category, ref)
		}
	}

	h.logger.Info("references resolved", map[string]interface{}{
		"lookups":      len(lookups),
		"resolved":     output.Resolved.Len(),
		"ambiguous":    output.Ambiguous.Len(),
		"autoResolved": output.AutoResolved.Len(),
	})

	return output, nil
}

func (h *Handler) ambiguous(candidates int) bool {
	if h.config.AutoResolveSingleCandidate {
		return candidates > 1
	}
	return candidates > 0
}

func (h *Handler) search(ctx context.Context, category models.Category, query, postType string) ([]models.Option, error) {
	switch category {
	case models.CategoryLocations:
		if h.searchers.Locations == nil {
			return nil, nil
		}
		return h.searchers.Locations.SearchLocations(ctx, query)
	case models.CategoryUsers:
		if h.searchers.Users == nil {
			return nil, nil
		}
		return h.searchers.Users.SearchUsers(ctx, query, postType)
	case models.CategoryPosts:
		if h.searchers.Posts == nil {
			return nil, nil
		}
		return h.searchers.Posts.SearchPosts(ctx, query, postType)
	}
	return nil, fmt.Errorf("unknown category %q", category)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
