package detectpii

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	Names     config.MatcherConfig
	Locations config.MatcherConfig
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Names:     config.MatcherConfig{MinChars: 3, Similarity: 80, MaxLevenshtein: 2},
		Locations: config.MatcherConfig{MinChars: 3, Similarity: 75, MaxLevenshtein: 2, ExactOnly: true},
		Timeout:   10 * time.Second,
	}
}

// NewConfig builds the detector config from the application config.
func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.Names = cfg.PII.Names
	c.Locations = cfg.PII.Locations
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
