package formatresponse

import "time"

type Config struct {
	// NearPerfectThreshold hides the breakdown table at or above this
	// confidence.
	NearPerfectThreshold float64
	Timeout              time.Duration
}

func LoadConfig() *Config {
	return &Config{
		NearPerfectThreshold: 0.95,
		Timeout:              5 * time.Second,
	}
}
