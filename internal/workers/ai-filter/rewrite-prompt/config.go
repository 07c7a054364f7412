package rewriteprompt

type Config struct {
	// WarnUnmatched logs when references were given but none occurs in
	// the prompt.
	WarnUnmatched bool
}

func LoadConfig() *Config {
	return &Config{WarnUnmatched: true}
}
