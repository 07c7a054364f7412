package extractconnections

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}

// NewConfig sizes the stage timeout to cover every model attempt.
func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg.LLM.Timeout > 0 {
		attempts := cfg.LLM.Attempts
		if attempts < 1 {
			attempts = 1
		}
		c.Timeout = time.Duration(attempts) * config.GetDuration(cfg.LLM.Timeout)
	}
	return c
}
