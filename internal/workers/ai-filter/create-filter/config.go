package createfilter

import (
	"time"

	"ai-list-filter/internal/common/config"
)

const defaultErrorMessage = "Unable to process prompt: %s"

type Config struct {
	Mode             string
	PostTypes        map[string]config.PostTypeConfig
	ErrorMessage     string
	Timeout          time.Duration
	SelectionTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Mode:             config.ModeConnections,
		PostTypes:        map[string]config.PostTypeConfig{},
		ErrorMessage:     defaultErrorMessage,
		Timeout:          90 * time.Second,
		SelectionTimeout: 90 * time.Second,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg.Pipeline.Mode != "" {
		c.Mode = cfg.Pipeline.Mode
	}
	if cfg.Pipeline.ErrorMessage != "" {
		c.ErrorMessage = cfg.Pipeline.ErrorMessage
	}
	c.PostTypes = cfg.PostTypes
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	if w, ok := cfg.Workers[SelectionsTaskType]; ok && w.Timeout > 0 {
		c.SelectionTimeout = config.GetDuration(w.Timeout)
	}
	return c
}
