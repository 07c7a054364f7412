package disambiguate

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	// Secret signs resume tokens. No token is issued when it is empty and
	// follow-ups continue from the state the client echoes back.
	Secret       []byte
	RequireToken bool
	TTL          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TTL: 30 * time.Minute,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.Secret = []byte(cfg.Pipeline.ResumeSecret)
	c.RequireToken = cfg.Pipeline.RequireResumeToken
	if cfg.Pipeline.ResumeTTL > 0 {
		c.TTL = config.GetDuration(cfg.Pipeline.ResumeTTL)
	}
	return c
}
