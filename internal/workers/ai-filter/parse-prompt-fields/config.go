package parsepromptfields

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	PostTypes map[string]config.PostTypeConfig
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		PostTypes: map[string]config.PostTypeConfig{},
		Timeout:   60 * time.Second,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.PostTypes = cfg.PostTypes
	if cfg.LLM.Timeout > 0 {
		attempts := cfg.LLM.Attempts
		if attempts < 1 {
			attempts = 1
		}
		c.Timeout = time.Duration(attempts) * config.GetDuration(cfg.LLM.Timeout)
	}
	return c
}
