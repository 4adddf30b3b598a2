package auditresponse

import "time"

type Config struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
	// MultiEnabled turns the multi-agent merge on; when off every multi
	// request reports ErrMultiAuditUnsupported.
	MultiEnabled      bool
	DefaultConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Model:             "openai/gpt-4o-mini",
		Temperature:       0.1,
		Timeout:           30 * time.Second,
		MultiEnabled:      true,
		DefaultConfidence: 0.85,
	}
}
