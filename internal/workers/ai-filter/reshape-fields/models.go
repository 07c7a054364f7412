package reshapefields

import "ai-list-filter/internal/models"

type Input struct {
	PostType   string               `json:"post_type"`
	Fields     []models.FilterField `json:"fields"`
	Pii        models.PiiResult     `json:"pii"`
	References models.ReferenceSet  `json:"references"`
	Ignored    []string             `json:"ignored"`
}

type Output struct {
	Fields models.QueryFields `json:"fields"`
}

// notes records what a reshape left out, for logging.
type notes struct {
	datesSkipped   int
	droppedIgnored int
	statusDropped  bool
}
