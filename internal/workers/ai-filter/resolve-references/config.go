package resolvereferences

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	// AutoResolveSingleCandidate treats a reference with exactly one
	// candidate as resolved instead of asking the user.
	AutoResolveSingleCandidate bool
	Concurrent                 bool
	Timeout                    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		AutoResolveSingleCandidate: true,
		Concurrent:                 true,
		Timeout:                    15 * time.Second,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.AutoResolveSingleCandidate = cfg.Pipeline.AutoResolveSingleCandidate
	c.Concurrent = cfg.Pipeline.ResolveConcurrently
	return c
}
