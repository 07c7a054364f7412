package bundles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, set.Connections.Brief)
	assert.NotEmpty(t, set.Filters.Structure)
	assert.NotEmpty(t, set.Fields.Examples)

	system := set.Connections.System("")
	assert.Contains(t, system, "\nExamples\nUser Query:\n")
	assert.NotContains(t, system, exampleDelimiter)
}

func TestBundle_System_Order(t *testing.T) {
	b := Bundle{
		Brief:          []string{"brief"},
		Structure:      []string{"structure", "  "},
		Instructions:   []string{"instructions"},
		Considerations: []string{"considerations"},
		Examples:       []string{"find Mary ==//== {\"connections\":[\"Mary\"]}"},
	}

	got := b.System(`{"name":{"type":"text"}}`)
	want := strings.Join([]string{
		"brief",
		"structure",
		`{"name":{"type":"text"}}`,
		"instructions",
		"considerations",
		"Examples",
		"User Query:\nfind Mary\nOutput:\n{\"connections\":[\"Mary\"]}",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBundle_System_NoExamples(t *testing.T) {
	b := Bundle{Brief: []string{"only"}}
	assert.Equal(t, "only", b.System(""))
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filters:\n  brief:\n    - custom brief\n"), 0o600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom brief"}, set.Filters.Brief)
	assert.Empty(t, set.Connections.Brief)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("connections:\n  examples:\n    - missing delimiter\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connections")

	_, err = Parse([]byte("connections: [unclosed"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
