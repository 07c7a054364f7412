package detectpii

import (
	"regexp"
	"strings"
)

var phonePatterns = []*regexp.Regexp{
	// International with country code.
	regexp.MustCompile(`\+\d{1,4}[\s\-.]?\(?(\d{1,4})\)?[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}[\s\-.]?\d{0,9}`),
	// US and Canada.
	regexp.MustCompile(`\b\(?([0-9]{3})\)?[\s\-.]?([0-9]{3})[\s\-.]?([0-9]{4})\b`),
	regexp.MustCompile(`\b1[\s\-.]?\(?([0-9]{3})\)?[\s\-.]?([0-9]{3})[\s\-.]?([0-9]{4})\b`),
	// UK.
	regexp.MustCompile(`\b0\d{2,4}[\s\-.]?\d{3,8}\b`),
	regexp.MustCompile(`\b\+44[\s\-.]?\d{2,4}[\s\-.]?\d{3,8}\b`),
	// Europe.
	regexp.MustCompile(`\b\+\d{2}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}\b`),
	// Australia.
	regexp.MustCompile(`\b\+61[\s\-.]?\d{1}[\s\-.]?\d{4}[\s\-.]?\d{4}\b`),
	regexp.MustCompile(`\b0\d[\s\-.]?\d{4}[\s\-.]?\d{4}\b`),
	// Generic.
	regexp.MustCompile(`\b\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}\b`),
	regexp.MustCompile(`\b\d{3}[\s\-.]?\d{7,10}\b`),
	// Mobile.
	regexp.MustCompile(`\b\+\d{1,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,6}\b`),
	// Extensions.
	regexp.MustCompile(`(?i)\b\(?([0-9]{3})\)?[\s\-.]?([0-9]{3})[\s\-.]?([0-9]{4})[\s\-.]?(?:ext?\.?|extension)[\s\-.]?(\d{1,6})\b`),
}

// Numbers introduced by a keyword; the number is in group 1 and the whole
// phrase is recorded.
var phoneContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:call|phone|tel|mobile|cell|contact)[\s:]*(\+?\d{1,4}[\s\-.()]?\d{1,4}[\s\-.()]?\d{1,4}[\s\-.()]?\d{1,9})`),
	regexp.MustCompile(`(?i)(?:number|#)[\s:]*(\+?\d{1,4}[\s\-.()]?\d{1,4}[\s\-.()]?\d{1,4}[\s\-.()]?\d{1,9})`),
}

var (
	phoneChars      = regexp.MustCompile(`(?i)^[\d\s\-.()+ext]+$`)
	phoneSeparators = regexp.MustCompile(`^[\s\-.()+]+$`)
	phoneNonDigits  = regexp.MustCompile(`\D`)
)

var phoneShapes = []*regexp.Regexp{
	regexp.MustCompile(`^\+\d{1,4}[\s\-.]?[\d\s\-.()]{6,14}$`),
	regexp.MustCompile(`(?i)^1?[\s\-.]?\(?[0-9]{3}\)?[\s\-.]?[0-9]{3}[\s\-.]?[0-9]{4}(?:[\s\-.]?(?:ext?\.?|extension)[\s\-.]?\d{1,6})?$`),
	regexp.MustCompile(`^(?:\+44|0)\d{2,4}[\s\-.]?\d{3,8}$`),
	regexp.MustCompile(`^\+\d{2}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}[\s\-.]?\d{1,4}$`),
	regexp.MustCompile(`^\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{0,4}$`),
	regexp.MustCompile(`^\+\d{1,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}[\s\-.]?\d{2,6}$`),
}

func findPhones(prompt string) []string {
	var found []string
	for _, re := range phonePatterns {
		for _, match := range re.FindAllString(prompt, -1) {
			if match = strings.TrimSpace(match); isValidPhone(match) {
				found = append(found, match)
			}
		}
	}
	for _, re := range phoneContextPatterns {
		for _, match := range re.FindAllStringSubmatch(prompt, -1) {
			if isValidPhone(strings.TrimSpace(match[1])) {
				found = append(found, match[0])
			}
		}
	}
	return found
}

func isValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)

	digits := phoneNonDigits.ReplaceAllString(phone, "")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	if !phoneChars.MatchString(phone) {
		return false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	if phoneSeparators.MatchString(phone) {
		return false
	}

	for _, re := range phoneShapes {
		if re.MatchString(phone) {
			return true
		}
	}
	return false
}
