package parsepromptfields

import "ai-list-filter/internal/models"

// Input carries the obfuscated prompt.
type Input struct {
	Prompt   string `json:"prompt"`
	PostType string `json:"post_type"`
}

type Output struct {
	Fields      []models.FilterField `json:"fields"`
	Connections models.Connections   `json:"connections"`
}
