package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
llm:
  endpoint: http://llm.local/v1
  model: test-model
database:
  postgres:
    host: localhost
    database: crm
    user: crm
post_types:
  contacts:
    status_key: overall_status
    fields:
      assigned_to:
        name: Assigned To
        type: user_select
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ModeConnections, cfg.Pipeline.Mode)
	assert.True(t, cfg.Pipeline.AutoResolveSingleCandidate)
	assert.Equal(t, DefaultErrorMessage, cfg.Pipeline.ErrorMessage)

	assert.Equal(t, 30000, cfg.LLM.Timeout)
	assert.Equal(t, 1000, cfg.LLM.MaxCompletionTokens)
	assert.Equal(t, 2, cfg.LLM.Attempts)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.InDelta(t, 1.0, cfg.LLM.TopP, 1e-9)
	assert.InDelta(t, 1.0, cfg.LLM.SummarizeTemperature, 1e-9)

	assert.Equal(t, 3, cfg.PII.Names.MinChars)
	assert.InDelta(t, 80, cfg.PII.Names.Similarity, 1e-9)
	assert.InDelta(t, 75, cfg.PII.Locations.Similarity, 1e-9)
	assert.Equal(t, 2, cfg.PII.Locations.MaxLevenshtein)

	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "posts", cfg.Database.Elasticsearch.PostsIndex)

	require.Contains(t, cfg.Modules, ModuleListFilter)
	assert.True(t, cfg.Modules[ModuleListFilter].Enabled)
	assert.Equal(t, "Metrics Dynamic Maps Enabled", cfg.Modules[ModuleDynamicMaps].Name)

	pt, ok := cfg.PostType("contacts")
	require.True(t, ok)
	assert.Equal(t, "overall_status", pt.StatusKey)
	assert.Equal(t, "user_select", pt.Fields["assigned_to"].Type)
}

func TestLoadFromFile_PolicyOverride(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
pipeline:
  mode: fields
  auto_resolve_single_candidate: false
`))
	require.NoError(t, err)
	assert.Equal(t, ModeFields, cfg.Pipeline.Mode)
	assert.False(t, cfg.Pipeline.AutoResolveSingleCandidate)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_RESUME_SECRET", "s3cret")
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
pipeline:
  resume_secret: ${TEST_RESUME_SECRET}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Pipeline.ResumeSecret)

	t.Setenv("LLM_API_KEY", "sk-from-env")
	cfg, err = LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"bad mode", "pipeline:\n  mode: magic\n", "pipeline.mode"},
		{"resume token without secret", "pipeline:\n  require_resume_token: true\n", "resume_secret"},
		{"no extras", "", ""},
		{"camunda without broker", "camunda:\n  enabled: true\n", "broker_address"},
		{"sns without topic", "integrations:\n  aws:\n    sns:\n      enabled: true\n", "topic_arn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_MissingLLM(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "post_types:\n  contacts: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.endpoint")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration(30000))
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"detect-pii": {Enabled: false, MaxJobsActive: 2}}}
	assert.Equal(t, 2, GetWorkerConfig(cfg, "detect-pii").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "detect-pii"))
	assert.True(t, IsWorkerEnabled(cfg, "create-filter"))
	assert.Equal(t, 60000, GetWorkerConfig(cfg, "create-filter").Timeout)
}

func TestPostTypeConfig_FieldKeys(t *testing.T) {
	pt := PostTypeConfig{Fields: map[string]FieldSpec{"b": {}, "a": {}, "c": {}}}
	assert.Equal(t, []string{"a", "b", "c"}, pt.FieldKeys())
}
