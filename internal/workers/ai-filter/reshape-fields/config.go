package reshapefields

import "ai-list-filter/internal/common/config"

type Config struct {
	PostTypes map[string]config.PostTypeConfig
}

func LoadConfig() *Config {
	return &Config{PostTypes: map[string]config.PostTypeConfig{}}
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{PostTypes: cfg.PostTypes}
}

// StatusKey returns the status field of postType, or "" when it has none.
func (c *Config) StatusKey(postType string) string {
	return c.PostTypes[postType].StatusKey
}
