package detectpii

import (
	"regexp"
	"strings"

	"ai-list-filter/internal/common/config"
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "about": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"between": {}, "among": {}, "this": {}, "that": {}, "these": {}, "those": {},
}

type token struct {
	text       string
	start, end int
}

// tokenize splits prompt on separators and keeps each token's byte offsets.
func tokenize(separators *regexp.Regexp, prompt string) []token {
	var tokens []token
	last := 0
	for _, loc := range separators.FindAllStringIndex(prompt, -1) {
		if loc[0] > last {
			tokens = append(tokens, token{text: prompt[last:loc[0]], start: last, end: loc[0]})
		}
		last = loc[1]
	}
	if last < len(prompt) {
		tokens = append(tokens, token{text: prompt[last:], start: last, end: len(prompt)})
	}
	return tokens
}

// windowMatcher slides word windows over a prompt, longest first, and
// reports windows that match a dictionary entry. Tokens inside a matching
// window are not reused by shorter windows.
type windowMatcher struct {
	separators *regexp.Regexp
	windows    []int
	cfg        config.MatcherConfig
}

func (m windowMatcher) find(prompt string, dictionary []string) []string {
	if len(dictionary) == 0 || strings.TrimSpace(prompt) == "" {
		return nil
	}

	lowered := make([]string, 0, len(dictionary))
	for _, entry := range dictionary {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			lowered = append(lowered, entry)
		}
	}

	tokens := tokenize(m.separators, prompt)
	used := make([]bool, len(tokens))
	var found []string

	for _, size := range m.windows {
		for i := 0; i+size <= len(tokens); i++ {
			if anyUsed(used[i : i+size]) {
				continue
			}
			words := make([]string, size)
			for k := 0; k < size; k++ {
				words[k] = tokens[i+k].text
			}
			term := strings.TrimSpace(strings.Join(words, " "))
			if len(term) < m.cfg.MinChars {
				continue
			}
			if !m.matches(strings.ToLower(term), lowered) {
				continue
			}
			found = append(found, prompt[tokens[i].start:tokens[i+size-1].end])
			for k := i; k < i+size; k++ {
				used[k] = true
			}
		}
	}

	return found
}

func (m windowMatcher) matches(term string, dictionary []string) bool {
	if _, stop := stopWords[term]; stop {
		return false
	}
	for _, entry := range dictionary {
		if term == entry {
			return true
		}
		if m.cfg.ExactOnly {
			continue
		}
		if strings.HasPrefix(entry, term) || strings.Contains(entry, term) {
			return true
		}
		if m.cfg.Similarity > 0 && similarText(term, entry) >= m.cfg.Similarity {
			return true
		}
		if len(term) > 3 && len(entry) > 3 && levenshtein(term, entry) <= m.cfg.MaxLevenshtein {
			return true
		}
	}
	return false
}

func anyUsed(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}
