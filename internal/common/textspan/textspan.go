// Package textspan replaces literal phrases in a text in a single pass.
//
// Replacements are recorded as byte spans over the original text. A span is
// only accepted when it does not overlap one already taken, so a phrase
// substituted early is never rewritten by a later one, and replacement text
// is never scanned again.
package textspan

import (
	"sort"
	"strings"
)

// Span replaces text[Start:End] with Replacement.
type Span struct {
	Start       int
	End         int
	Replacement string
}

// Set collects non-overlapping spans over one text.
type Set struct {
	text  string
	spans []Span
}

func New(text string) *Set {
	return &Set{text: text}
}

// Overlaps reports whether [start, end) intersects an accepted span.
func (s *Set) Overlaps(start, end int) bool {
	for _, sp := range s.spans {
		if start < sp.End && sp.Start < end {
			return true
		}
	}
	return false
}

// Add accepts span unless it is empty, out of range or overlapping.
func (s *Set) Add(span Span) bool {
	if span.Start < 0 || span.End > len(s.text) || span.Start >= span.End {
		return false
	}
	if s.Overlaps(span.Start, span.End) {
		return false
	}
	s.spans = append(s.spans, span)
	return true
}

// ReplaceAll schedules replacement for every occurrence of phrase that does
// not touch an accepted span. It returns how many occurrences were taken.
func (s *Set) ReplaceAll(phrase, replacement string) int {
	if phrase == "" {
		return 0
	}
	count := 0
	for offset := 0; offset < len(s.text); {
		i := strings.Index(s.text[offset:], phrase)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(phrase)
		if s.Add(Span{Start: start, End: end, Replacement: replacement}) {
			count++
			offset = end
			continue
		}
		offset = start + 1
	}
	return count
}

// Len returns the number of accepted spans.
func (s *Set) Len() int {
	return len(s.spans)
}

// Apply returns the text with every accepted span replaced.
func (s *Set) Apply() string {
	if len(s.spans) == 0 {
		return s.text
	}
	spans := make([]Span, len(s.spans))
	copy(spans, s.spans)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var b strings.Builder
	b.Grow(len(s.text))
	last := 0
	for _, sp := range spans {
		b.WriteString(s.text[last:sp.Start])
		b.WriteString(sp.Replacement)
		last = sp.End
	}
	b.WriteString(s.text[last:])
	return b.String()
}
