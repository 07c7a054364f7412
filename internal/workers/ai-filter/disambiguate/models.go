package disambiguate

import "ai-list-filter/internal/models"

// Input is the follow-up request after the user picked among candidates.
// Pii, FilteredFields and AutoResolved are echoed from the ambiguous
// response. A verified resume token overrides them.
type Input struct {
	Prompt         string               `json:"prompt"`
	PostType       string               `json:"post_type"`
	Selections     models.SelectionSet  `json:"selections"`
	Pii            *models.PiiResult    `json:"pii"`
	FilteredFields []models.FilterField `json:"filtered_fields"`
	AutoResolved   *models.ReferenceSet `json:"auto_resolved"`
	Resume         string               `json:"resume"`
}

// Output is the state the rest of the run continues from. A nil Pii means
// the caller has to detect PII again.
type Output struct {
	Pii        *models.PiiResult    `json:"pii"`
	References models.ReferenceSet  `json:"references"`
	Ignored    []string             `json:"ignored"`
	Fields     []models.FilterField `json:"fields"`
	Verified   bool                 `json:"verified"`
}

// ResumeState is what a resume token carries between the two requests.
type ResumeState struct {
	PostType     string               `json:"post_type"`
	Prompt       string               `json:"prompt"`
	Mappings     map[string]string    `json:"mappings"`
	AutoResolved models.ReferenceSet  `json:"auto_resolved"`
	Fields       []models.FilterField `json:"fields,omitempty"`
	IssuedAt     int64                `json:"issued_at"`
}
