package detectpii

import (
	"net/mail"
	"regexp"
	"strings"
)

var emailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?@[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b[A-Za-z0-9](?:[A-Za-z0-9._+-]*[A-Za-z0-9])?@[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?\.[A-Za-z]{2,}\b`),
	// Delimited by punctuation; the address is in group 1.
	regexp.MustCompile(`[\s(\[{<"']([A-Za-z0-9](?:[A-Za-z0-9._+-]*[A-Za-z0-9])?@[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?\.[A-Za-z]{2,})[\s)\]}>"']`),
	regexp.MustCompile(`\b\S+@\S+\.\S+\b`),
}

// "john.smith at example.com" style addresses.
var spelledEmailPattern = regexp.MustCompile(`(?i)\b([A-Za-z0-9]+(?:\s*[._-]\s*[A-Za-z0-9]+)*)\s+(?:at|@)\s+([A-Za-z0-9]+(?:\s*[._-]\s*[A-Za-z0-9]+)*)\s*[._]\s*([A-Za-z]{2,})\b`)

var (
	emailLocalChars  = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)
	emailDomainChars = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
	emailTLD         = regexp.MustCompile(`^[A-Za-z]+$`)
	spelledEmailTrim = strings.NewReplacer(" ", "", "_", "", "-", "")
)

func findEmails(prompt string) []string {
	var found []string
	for _, re := range emailPatterns {
		for _, match := range re.FindAllStringSubmatch(prompt, -1) {
			email := match[0]
			if len(match) > 1 && match[1] != "" {
				email = match[1]
			}
			if email = strings.TrimSpace(email); isValidEmail(email) {
				found = append(found, email)
			}
		}
	}

	// The spelled-out form is recorded as written so it can be replaced in
	// the prompt.
	for _, match := range spelledEmailPattern.FindAllStringSubmatch(prompt, -1) {
		rebuilt := spelledEmailTrim.Replace(match[1]) + "@" +
			spelledEmailTrim.Replace(match[2]) + "." +
			spelledEmailTrim.Replace(match[3])
		if isValidEmail(rebuilt) {
			found = append(found, match[0])
		}
	}

	return found
}

func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]

	if local == "" || len(local) > 64 || !emailLocalChars.MatchString(local) {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}

	if domain == "" || len(domain) > 255 || !strings.Contains(domain, ".") || !emailDomainChars.MatchString(domain) {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") ||
		strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") ||
		strings.Contains(domain, "..") {
		return false
	}

	labels := strings.Split(domain, ".")
	tld := labels[len(labels)-1]
	if len(tld) < 2 || !emailTLD.MatchString(tld) {
		return false
	}

	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
