package answerspecialist

import "time"

type Config struct {
	Model string
	// Temperature is used for domains whose registry entry leaves it at 0.
	Temperature float64
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:       "openai/gpt-4o-mini",
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}
