package processquestion

import "time"

type Config struct {
	// Timeout bounds a whole job.
	Timeout           time.Duration
	RouteTimeout      time.Duration
	SpecialistTimeout time.Duration
	AuditTimeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           180 * time.Second,
		RouteTimeout:      60 * time.Second,
		SpecialistTimeout: 60 * time.Second,
		AuditTimeout:      60 * time.Second,
	}
}
