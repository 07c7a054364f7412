package summarizeprompt

import (
	"time"

	"ai-list-filter/internal/common/config"
)

type Config struct {
	Temperature float64
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Temperature: 1,
		Timeout:     45 * time.Second,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.Temperature = cfg.LLM.SummarizeTemperature
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
