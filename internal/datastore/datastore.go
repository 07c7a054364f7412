// Package datastore implements the posts datastore contracts the pipeline
// consumes: dictionaries for PII detection, candidate searches for the
// resolver, the list-by-filter query and module toggles.
package datastore

import (
	"context"
	"strings"

	"ai-list-filter/internal/models"
)

type Dictionary interface {
	PostTitles(ctx context.Context, postType string) ([]string, error)
	LocationNames(ctx context.Context) ([]string, error)
}

type LocationSearcher interface {
	SearchLocations(ctx context.Context, query string) ([]models.Option, error)
}

type UserSearcher interface {
	SearchUsers(ctx context.Context, query, postType string) ([]models.Option, error)
}

// PostSearcher finds records of postType by name. Closed records are left
// out and the most recently modified come first.
type PostSearcher interface {
	SearchPosts(ctx context.Context, query, postType string) ([]models.Option, error)
}

type PostLister interface {
	ListPosts(ctx context.Context, postType string, fields models.QueryFields) ([]models.Post, error)
}

// ModuleState is a stored override of a module toggle.
type ModuleState struct {
	ID      string
	Visible bool
	Enabled bool
}

type ModuleStore interface {
	ModuleStates(ctx context.Context) (map[string]ModuleState, error)
	SaveModuleState(ctx context.Context, state ModuleState) error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching query anywhere.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}
