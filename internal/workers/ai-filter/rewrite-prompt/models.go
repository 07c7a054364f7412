package rewriteprompt

import "ai-list-filter/internal/models"

type Input struct {
	Prompt     string              `json:"prompt"`
	References models.ReferenceSet `json:"references"`
	// Ignored phrases are marked processed and left in the prompt.
	Ignored []string `json:"ignored"`
	HasPii  bool     `json:"has_pii"`
}

type Output struct {
	Prompt    string   `json:"prompt"`
	Processed []string `json:"processed"`
	Replaced  int      `json:"replaced"`
}
