// Package bundles loads the instruction bundles used as system messages for
// the model calls.
package bundles

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultBundles []byte

const exampleDelimiter = "==//=="

// Bundle is one call site's instructions. Sections are joined in the order
// brief, structure, field specs, instructions, considerations, examples.
type Bundle struct {
	Brief          []string `yaml:"brief"`
	Structure      []string `yaml:"structure"`
	Instructions   []string `yaml:"instructions"`
	Considerations []string `yaml:"considerations"`
	Examples       []string `yaml:"examples"`
}

type Set struct {
	Connections Bundle `yaml:"connections"`
	Filters     Bundle `yaml:"filters"`
	Fields      Bundle `yaml:"fields"`
}

// Load reads bundles from path, or the embedded defaults when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Parse(defaultBundles)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundles %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse bundles: %w", err)
	}
	for name, b := range map[string]Bundle{"connections": set.Connections, "filters": set.Filters, "fields": set.Fields} {
		if _, err := ReshapeExamples(b.Examples); err != nil {
			return nil, fmt.Errorf("bundle %s: %w", name, err)
		}
	}
	return &set, nil
}

// System assembles the system message. fieldSpecs is inserted after the
// structure section when non-empty.
func (b Bundle) System(fieldSpecs string) string {
	var parts []string
	parts = append(parts, clean(b.Brief)...)
	parts = append(parts, clean(b.Structure)...)
	if fieldSpecs != "" {
		parts = append(parts, fieldSpecs)
	}
	parts = append(parts, clean(b.Instructions)...)
	parts = append(parts, clean(b.Considerations)...)

	// Parse already rejected malformed examples.
	examples, _ := ReshapeExamples(b.Examples)
	parts = append(parts, examples...)
	return strings.Join(parts, "\n")
}

// ReshapeExamples turns "query ==//== output" lines into worked examples
// under an Examples header.
func ReshapeExamples(examples []string) ([]string, error) {
	lines := clean(examples)
	if len(lines) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, "Examples")
	for _, line := range lines {
		query, output, ok := strings.Cut(line, exampleDelimiter)
		if !ok {
			return nil, fmt.Errorf("example %q has no %s delimiter", line, exampleDelimiter)
		}
		out = append(out, "User Query:\n"+strings.TrimSpace(query)+"\nOutput:\n"+strings.TrimSpace(output))
	}
	return out, nil
}

func clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
