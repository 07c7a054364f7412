package config

import (
	"fmt"
	"sort"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig                 `mapstructure:"app"`
	Server       ServerConfig              `mapstructure:"server"`
	Camunda      CamundaConfig             `mapstructure:"camunda"`
	Database     DatabaseConfig            `mapstructure:"database"`
	Workers      map[string]WorkerConfig   `mapstructure:"workers"`
	Auth         AuthConfig                `mapstructure:"auth"`
	Integrations IntegrationConfig         `mapstructure:"integrations"`
	LLM          LLMConfig                 `mapstructure:"llm"`
	Pipeline     PipelineConfig            `mapstructure:"pipeline"`
	PII          PIIConfig                 `mapstructure:"pii"`
	PostTypes    map[string]PostTypeConfig `mapstructure:"post_types"`
	Modules      map[string]ModuleConfig   `mapstructure:"modules"`
	Logging      LoggingConfig             `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig enables the search-backed location and post lookups.
// When disabled the resolver searches Postgres directly.
type ElasticsearchConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	URL            string   `mapstructure:"url"`
	PostsIndex     string   `mapstructure:"posts_index"`
	LocationsIndex string   `mapstructure:"locations_index"`
	MaxResults     int      `mapstructure:"max_results"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// RedisConfig configures the dictionary cache. An empty address disables it.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// AuthConfig configures bearer-token checks on the API.
type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RequiredScope string `mapstructure:"required_scope"`
	Keycloak      struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for outbound integrations.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// LLMConfig configures the chat-completions endpoint.
type LLMConfig struct {
	Endpoint             string  `mapstructure:"endpoint"`
	APIKey               string  `mapstructure:"api_key"`
	Model                string  `mapstructure:"model"`
	Timeout              int     `mapstructure:"timeout"` // milliseconds
	MaxCompletionTokens  int     `mapstructure:"max_completion_tokens"`
	Temperature          float64 `mapstructure:"temperature"`
	TopP                 float64 `mapstructure:"top_p"`
	Attempts             int     `mapstructure:"attempts"`
	SummarizeTemperature float64 `mapstructure:"summarize_temperature"`
}

const (
	ModeConnections = "connections"
	ModeFields      = "fields"
)

// PipelineConfig selects the pipeline flow and its disambiguation policy.
type PipelineConfig struct {
	Mode                       string `mapstructure:"mode"`
	AutoResolveSingleCandidate bool   `mapstructure:"auto_resolve_single_candidate"`
	ResumeSecret               string `mapstructure:"resume_secret"`
	RequireResumeToken         bool   `mapstructure:"require_resume_token"`
	ResumeTTL                  int    `mapstructure:"resume_ttl"` // milliseconds
	ErrorMessage               string `mapstructure:"error_message"`
	BundlesPath                string `mapstructure:"bundles_path"`
	ResolveConcurrently        bool   `mapstructure:"resolve_concurrently"`
}

// MatcherConfig tunes one windowed dictionary matcher.
type MatcherConfig struct {
	MinChars       int     `mapstructure:"min_chars"`
	Similarity     float64 `mapstructure:"similarity"`
	MaxLevenshtein int     `mapstructure:"max_levenshtein"`
	ExactOnly      bool    `mapstructure:"exact_only"`
}

type PIIConfig struct {
	Names              MatcherConfig `mapstructure:"names"`
	Locations          MatcherConfig `mapstructure:"locations"`
	DictionaryCacheTTL int           `mapstructure:"dictionary_cache_ttl"` // milliseconds
}

// FieldSpec describes one post-type field to the model and to the
// fields-first connection derivation.
type FieldSpec struct {
	Name     string            `mapstructure:"name" json:"name"`
	Type     string            `mapstructure:"type" json:"type"`
	Defaults map[string]string `mapstructure:"defaults" json:"default,omitempty"`
}

type PostTypeConfig struct {
	Label     string               `mapstructure:"label"`
	StatusKey string               `mapstructure:"status_key"`
	Fields    map[string]FieldSpec `mapstructure:"fields"`
}

// FieldKeys returns the configured field keys in sorted order.
func (p PostTypeConfig) FieldKeys() []string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ModuleConfig is the default state of a feature toggle.
type ModuleConfig struct {
	Name    string `mapstructure:"name"`
	Visible bool   `mapstructure:"visible"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
