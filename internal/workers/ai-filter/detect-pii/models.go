package detectpii

import "ai-list-filter/internal/models"

type Input struct {
	Prompt   string `json:"prompt"`
	PostType string `json:"postType"`
}

type Output struct {
	Pii models.PiiResult `json:"pii"`
}

// Kind names the sub-detector that flagged a span.
type Kind string

const (
	KindName     Kind = "name"
	KindLocation Kind = "location"
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
)

// Finding is one flagged span of the prompt.
type Finding struct {
	Kind Kind
	Text string
}
