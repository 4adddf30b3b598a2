package routequestion

import "time"

type Config struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
	// Bias weights per domain slug; 1.0 is neutral.
	Bias map[string]float64
}

func LoadConfig() *Config {
	return &Config{
		Model:       "openai/gpt-4o-mini",
		Temperature: 0.1,
		Timeout:     30 * time.Second,
	}
}
