package detectpii

import (
	"regexp"
	"strings"

	"ai-list-filter/internal/common/config"
)

// Location tokens keep dots so abbreviations like "St." stay whole.
var locationSeparators = regexp.MustCompile(`[\s,;:!?()\[\]{}"']+`)

const streetSuffixes = `(Street|St|Avenue|Ave|Road|Rd|Lane|Ln|Drive|Dr|Boulevard|Blvd|Way|Place|Pl|Court|Ct|Circle|Cir)`

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+` + streetSuffixes + `\b`),
	regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+\s+` + streetSuffixes + `\b`),
}

var postalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{5}(-\d{4})?\b`),
	regexp.MustCompile(`\b[A-Z]\d[A-Z]\s?\d[A-Z]\d\b`),
	regexp.MustCompile(`\b\d{4,5}\b`),
	regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b`),
}

// findLocations flags street addresses, postal codes and windows of up to
// four words that match a location-grid name.
func findLocations(prompt string, names []string, cfg config.MatcherConfig) []string {
	var found []string
	for _, re := range addressPatterns {
		for _, match := range re.FindAllString(prompt, -1) {
			if match = strings.TrimSpace(match); match != "" {
				found = append(found, match)
			}
		}
	}
	for _, re := range postalPatterns {
		for _, match := range re.FindAllString(prompt, -1) {
			if match = strings.TrimSpace(match); match != "" {
				found = append(found, match)
			}
		}
	}

	m := windowMatcher{separators: locationSeparators, windows: []int{4, 3, 2, 1}, cfg: cfg}
	return append(found, m.find(prompt, names)...)
}
