package summarizeprompt

type Input struct {
	Prompt string `json:"prompt"`
}

type Output struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}
