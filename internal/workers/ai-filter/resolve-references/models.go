package resolvereferences

import "ai-list-filter/internal/models"

type Input struct {
	PostType    string             `json:"post_type"`
	Connections models.Connections `json:"connections"`
	Pii         models.PiiResult   `json:"pii"`
}

// Output splits the references that found candidates. Resolved holds all of
// them; Ambiguous and AutoResolved partition it by the candidate policy.
type Output struct {
	Resolved     models.ReferenceSet `json:"resolved"`
	Ambiguous    models.ReferenceSet `json:"ambiguous"`
	AutoResolved models.ReferenceSet `json:"auto_resolved"`
}

func (o *Output) HasAmbiguous() bool {
	return o.Ambiguous.Len() > 0
}
