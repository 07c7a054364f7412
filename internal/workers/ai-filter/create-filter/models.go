package createfilter

import "ai-list-filter/internal/models"

// Input starts a run from a prompt. Maps asks for GeoJSON points instead
// of posts.
type Input struct {
	Prompt   string `json:"prompt"`
	PostType string `json:"post_type"`
	Maps     bool   `json:"maps,omitempty"`
}

// SelectionsInput continues a run after the user answered the ambiguous
// references.
type SelectionsInput struct {
	Prompt         string               `json:"prompt"`
	PostType       string               `json:"post_type"`
	Selections     models.SelectionSet  `json:"selections"`
	Pii            *models.PiiResult    `json:"pii"`
	FilteredFields []models.FilterField `json:"filtered_fields"`
	AutoResolved   *models.ReferenceSet `json:"auto_resolved,omitempty"`
	Resume         string               `json:"resume,omitempty"`
	Maps           bool                 `json:"maps,omitempty"`
}

// Pipeline states, used as stage labels.
const (
	StagePiiDetected          = "pii_detected"
	StageConnectionsExtracted = "connections_extracted"
	StageFieldsParsed         = "fields_parsed"
	StageResolved             = "resolved"
	StageAmbiguous            = "ambiguous"
	StageSelectionsApplied    = "selections_applied"
	StagePromptRewritten      = "prompt_rewritten"
	StageFilterSynthesized    = "filter_synthesized"
	StageFieldsReshaped       = "fields_reshaped"
	StagePostsListed          = "posts_listed"
	StageDone                 = "done"
	StageError                = "error"
)
