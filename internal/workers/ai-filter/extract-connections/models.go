package extractconnections

import "ai-list-filter/internal/models"

// Input carries the obfuscated prompt. The original never reaches this stage.
type Input struct {
	Prompt string `json:"prompt"`
}

type Output struct {
	Connections models.Connections `json:"connections"`
}
