package models

import (
	"sort"
	"strings"
)

// PromptPair holds a prompt as the user wrote it and as the model sees it.
type PromptPair struct {
	Original   string `json:"original"`
	Obfuscated string `json:"obfuscated"`
}

// PiiResult is the outcome of PII detection and obfuscation for one run.
// Mappings go from obfuscated token to original text.
type PiiResult struct {
	Prompt   PromptPair        `json:"prompt"`
	Pii      []string          `json:"pii"`
	Mappings map[string]string `json:"mappings"`
}

// NoPii returns the result for a prompt with nothing to hide.
func NoPii(prompt string) PiiResult {
	return PiiResult{
		Prompt:   PromptPair{Original: prompt, Obfuscated: prompt},
		Pii:      []string{},
		Mappings: map[string]string{},
	}
}

func (p PiiResult) HasPii() bool {
	return len(p.Pii) > 0 && len(p.Mappings) > 0
}

// Original returns the original text for an obfuscated token.
func (p PiiResult) Original(token string) (string, bool) {
	v, ok := p.Mappings[token]
	return v, ok
}

// TokenFor returns the obfuscated token standing in for original.
func (p PiiResult) TokenFor(original string) (string, bool) {
	for token, orig := range p.Mappings {
		if orig == original {
			return token, true
		}
	}
	return "", false
}

// Deobfuscate maps a whole value back when it is a token, and otherwise
// returns it unchanged.
func (p PiiResult) Deobfuscate(value string) string {
	if orig, ok := p.Mappings[value]; ok {
		return orig
	}
	return value
}

// Restore replaces every token embedded in text with its original.
func (p PiiResult) Restore(text string) string {
	if len(p.Mappings) == 0 || text == "" {
		return text
	}
	tokens := make([]string, 0, len(p.Mappings))
	for token := range p.Mappings {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	pairs := make([]string, 0, 2*len(tokens))
	for _, token := range tokens {
		pairs = append(pairs, token, p.Mappings[token])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ContainsToken reports whether any obfuscated token occurs in text.
func (p PiiResult) ContainsToken(text string) bool {
	for token := range p.Mappings {
		if token != "" && strings.Contains(text, token) {
			return true
		}
	}
	return false
}
