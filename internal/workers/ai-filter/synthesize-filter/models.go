package synthesizefilter

import "ai-list-filter/internal/models"

// Input carries the rewritten, obfuscated prompt.
type Input struct {
	Prompt   string `json:"prompt"`
	PostType string `json:"post_type"`
}

type Output struct {
	Fields []models.FilterField `json:"fields"`
}
