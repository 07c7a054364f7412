package detectpii

import (
	"regexp"

	"ai-list-filter/internal/common/config"
)

var nameSeparators = regexp.MustCompile(`[\s,;:!?.()\[\]{}"']+`)

// findNames flags windows of up to three words that match a record title.
func findNames(prompt string, titles []string, cfg config.MatcherConfig) []string {
	m := windowMatcher{separators: nameSeparators, windows: []int{3, 2, 1}, cfg: cfg}
	return m.find(prompt, titles)
}
