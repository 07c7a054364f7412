package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default module toggles. Stored overrides are merged over these.
const (
	ModuleListFilter          = "dt_ai_list_filter"
	ModuleMagicLinkListFilter = "dt_ai_ml_list_filter"
	ModuleDynamicMaps         = "dt_ai_metrics_dynamic_maps"
)

const DefaultErrorMessage = "Unable to process prompt: %s"

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults whose zero value is meaningful, so they
// cannot be filled in after unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.top_p", 1.0)
	v.SetDefault("llm.summarize_temperature", 1.0)
	v.SetDefault("pipeline.mode", ModeConnections)
	v.SetDefault("pipeline.auto_resolve_single_candidate", true)
	v.SetDefault("pipeline.resolve_concurrently", true)
	v.SetDefault("pipeline.error_message", DefaultErrorMessage)
	v.SetDefault("pii.locations.exact_only", true)

	v.SetDefault("modules."+ModuleListFilter+".name", "List Filter Enabled")
	v.SetDefault("modules."+ModuleListFilter+".visible", true)
	v.SetDefault("modules."+ModuleListFilter+".enabled", true)
	v.SetDefault("modules."+ModuleMagicLinkListFilter+".name", "Magic Link List Filter Enabled")
	v.SetDefault("modules."+ModuleMagicLinkListFilter+".visible", true)
	v.SetDefault("modules."+ModuleMagicLinkListFilter+".enabled", true)
	v.SetDefault("modules."+ModuleDynamicMaps+".name", "Metrics Dynamic Maps Enabled")
	v.SetDefault("modules."+ModuleDynamicMaps+".visible", true)
	v.SetDefault("modules."+ModuleDynamicMaps+".enabled", true)
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "" so overrideEmptyConfig can
			// fill them in.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets left empty by the files from well-known
// environment variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		if val := os.Getenv("LLM_API_KEY"); val != "" {
			cfg.LLM.APIKey = val
		}
	}
	if cfg.LLM.Endpoint == "" {
		if val := os.Getenv("LLM_ENDPOINT"); val != "" {
			cfg.LLM.Endpoint = val
		}
	}
	if cfg.Pipeline.ResumeSecret == "" {
		if val := os.Getenv("RESUME_SECRET"); val != "" {
			cfg.Pipeline.ResumeSecret = val
		}
	}
	if cfg.Auth.Keycloak.ClientSecret == "" {
		if val := os.Getenv("KEYCLOAK_CLIENT_SECRET"); val != "" {
			cfg.Auth.Keycloak.ClientSecret = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	es := &cfg.Database.Elasticsearch
	if es.URL == "" && len(es.Addresses) > 0 {
		es.URL = es.Addresses[0]
	}
	if es.PostsIndex == "" {
		es.PostsIndex = "posts"
	}
	if es.LocationsIndex == "" {
		es.LocationsIndex = "location_grid"
	}
	if es.MaxResults == 0 {
		es.MaxResults = 25
	}

	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30000
	}
	if cfg.LLM.MaxCompletionTokens == 0 {
		cfg.LLM.MaxCompletionTokens = 1000
	}
	if cfg.LLM.Attempts == 0 {
		cfg.LLM.Attempts = 2
	}

	if cfg.Pipeline.ResumeTTL == 0 {
		cfg.Pipeline.ResumeTTL = 30 * 60 * 1000
	}

	applyMatcherDefaults(&cfg.PII.Names, 3, 80, 2)
	applyMatcherDefaults(&cfg.PII.Locations, 3, 75, 2)
	if cfg.PII.DictionaryCacheTTL == 0 {
		cfg.PII.DictionaryCacheTTL = 5 * 60 * 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func applyMatcherDefaults(m *MatcherConfig, minChars int, similarity float64, maxLevenshtein int) {
	if m.MinChars == 0 {
		m.MinChars = minChars
	}
	if m.Similarity == 0 {
		m.Similarity = similarity
	}
	if m.MaxLevenshtein == 0 {
		m.MaxLevenshtein = maxLevenshtein
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	switch cfg.Pipeline.Mode {
	case ModeConnections, ModeFields:
	default:
		return fmt.Errorf("pipeline.mode must be %q or %q, got %q", ModeConnections, ModeFields, cfg.Pipeline.Mode)
	}
	if cfg.Pipeline.RequireResumeToken && cfg.Pipeline.ResumeSecret == "" {
		return fmt.Errorf("pipeline.resume_secret is required when pipeline.require_resume_token is set")
	}
	if strings.Count(cfg.Pipeline.ErrorMessage, "%s") > 1 {
		return fmt.Errorf("pipeline.error_message may contain at most one %%s")
	}

	if len(cfg.PostTypes) == 0 {
		return fmt.Errorf("post_types must configure at least one post type")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when elasticsearch is enabled")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Auth.Enabled && (cfg.Auth.Keycloak.URL == "" || cfg.Auth.Keycloak.Realm == "") {
		return fmt.Errorf("auth.keycloak.url and auth.keycloak.realm are required when auth is enabled")
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// PostType looks up a configured post type.
func (c *Config) PostType(name string) (PostTypeConfig, bool) {
	pt, ok := c.PostTypes[name]
	return pt, ok
}
