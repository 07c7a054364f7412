package models

import "encoding/json"

// Status tags the terminal state of a pipeline run.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusMultipleOptions Status = "multiple_options_detected"
	StatusError           Status = "error"
)

type PromptResult struct {
	Original string `json:"original"`
	Parsed   string `json:"parsed,omitempty"`
}

type ConnectionsResult struct {
	Extracted Connections `json:"extracted"`
}

// Result is the response of one pipeline run. Which fields are set depends
// on Status.
type Result struct {
	Status          Status             `json:"status"`
	Message         string             `json:"message,omitempty"`
	Prompt          *PromptResult      `json:"prompt,omitempty"`
	Pii             *PiiResult         `json:"pii,omitempty"`
	Connections     *ConnectionsResult `json:"connections,omitempty"`
	MultipleOptions *ReferenceSet      `json:"multiple_options,omitempty"`
	AutoResolved    *ReferenceSet      `json:"auto_resolved,omitempty"`
	Fields          []FilterField      `json:"fields,omitempty"`
	Resume          string             `json:"resume,omitempty"`
	Filter          *Filter            `json:"filter,omitempty"`
	Posts           []Post             `json:"posts,omitempty"`
	Points          *FeatureCollection `json:"points,omitempty"`
}

// Filter is the structured filter returned on success.
type Filter struct {
	PostType string      `json:"post_type"`
	Fields   QueryFields `json:"fields"`
}

func ErrorResult(message string) *Result {
	return &Result{Status: StatusError, Message: message}
}

// MarshalJSON always emits posts on a success without points, even when the
// filter matched nothing.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	out := struct {
		alias
		Posts *[]Post `json:"posts,omitempty"`
	}{alias: alias(r)}
	if len(r.Posts) > 0 || (r.Status == StatusSuccess && r.Points == nil) {
		posts := r.Posts
		if posts == nil {
			posts = []Post{}
		}
		out.Posts = &posts
	}
	return json.Marshal(out)
}
