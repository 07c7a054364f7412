package detectpii

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ai-list-filter/internal/common/textspan"
	"ai-list-filter/internal/models"
)

const (
	saltLength      = 13
	maxTokenRetries = 16
)

// Obfuscator swaps detected spans for random tokens and remembers the way back.
type Obfuscator struct {
	salt    func() string
	shuffle func(string) string
}

func NewObfuscator() *Obfuscator {
	return &Obfuscator{salt: uuidSalt, shuffle: shuffleRunes}
}

func uuidSalt() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:saltLength]
}

func shuffleRunes(s string) string {
	runes := []rune(s)
	rand.Shuffle(len(runes), func(i, j int) { runes[i], runes[j] = runes[j], runes[i] })
	return string(runes)
}

// Obfuscate returns the prompt with every span replaced by its token.
// Longer spans are placed first and a span never overlaps another, so a
// postal code inside a phone number stays part of the phone token.
func (o *Obfuscator) Obfuscate(prompt string, pii []string) models.PiiResult {
	if len(pii) == 0 {
		return models.NoPii(prompt)
	}

	ordered := make([]string, len(pii))
	copy(ordered, pii)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	spans := textspan.New(prompt)
	mappings := make(map[string]string, len(ordered))
	for _, original := range ordered {
		token := o.token(prompt, original, mappings)
		if spans.ReplaceAll(original, token) > 0 {
			mappings[token] = original
		}
	}

	return models.PiiResult{
		Prompt:   models.PromptPair{Original: prompt, Obfuscated: spans.Apply()},
		Pii:      pii,
		Mappings: mappings,
	}
}

func (o *Obfuscator) token(prompt, original string, taken map[string]string) string {
	var token string
	for i := 0; i < maxTokenRetries; i++ {
		token = o.shuffle(original + o.salt())
		if _, dup := taken[token]; dup {
			continue
		}
		if strings.Contains(prompt, token) {
			continue
		}
		return token
	}
	// A bare salt cannot occur in a prompt by chance in practice.
	return o.salt() + o.salt()
}
