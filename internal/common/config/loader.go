// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const routerBiasEnvPrefix = "ROUTER_BIAS_"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Enable ENV override like OPENROUTER_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("auditor.multi_enabled", true)
	v.SetDefault("prompts.watch", false)
	return v
}

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1️⃣ LOAD BASE CONFIG
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2️⃣ LOAD ENV CONFIG
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	// 3️⃣ EXPAND ENV PLACEHOLDERS
	expandEnvVars(v)

	// 4️⃣ Unmarshal final config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5️⃣ DIRECT OVERRIDE IF STILL EMPTY
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from the first location that has one
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.OpenRouter.APIKey == "" {
		if val := os.Getenv("OPENROUTER_API_KEY"); val != "" {
			cfg.OpenRouter.APIKey = val
		}
	}
	if cfg.Search.APIKey == "" {
		if val := os.Getenv("TAVILY_API_KEY"); val != "" {
			cfg.Search.APIKey = val
		}
	}
	if cfg.Camunda.BrokerAddress == "" {
		if val := os.Getenv("ZEEBE_ADDRESS"); val != "" {
			cfg.Camunda.BrokerAddress = val
		}
	}
	if val := os.Getenv("ENABLE_SEARCH"); val != "" {
		cfg.Search.Enabled = strings.EqualFold(val, "true")
	}

	for domain, weight := range biasFromEnv(os.Environ()) {
		cfg.Router.Bias[domain] = weight
	}
}

// biasFromEnv reads ROUTER_BIAS_<DOMAIN>=<float> entries. Unparseable
// values are ignored.
func biasFromEnv(environ []string) map[string]float64 {
	out := make(map[string]float64)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, routerBiasEnvPrefix) {
			continue
		}
		domain := strings.ToLower(strings.TrimPrefix(key, routerBiasEnvPrefix))
		weight, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if domain == "" || err != nil {
			continue
		}
		out[domain] = weight
	}
	return out
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bureaucracy-oracle"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// OpenRouter defaults
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.OpenRouter.Title == "" {
		cfg.OpenRouter.Title = "Bureaucracy Oracle"
	}
	if cfg.OpenRouter.Timeout == 0 {
		cfg.OpenRouter.Timeout = 30000
	}
	if cfg.OpenRouter.MaxRetries == 0 {
		cfg.OpenRouter.MaxRetries = 2
	}
	if cfg.OpenRouter.BreakerThreshold == 0 {
		cfg.OpenRouter.BreakerThreshold = 5
	}
	if cfg.OpenRouter.BreakerCooldown == 0 {
		cfg.OpenRouter.BreakerCooldown = 30000
	}

	// Model defaults
	if cfg.Models.Router == "" {
		cfg.Models.Router = "openai/gpt-4o-mini"
	}
	if cfg.Models.Specialist == "" {
		cfg.Models.Specialist = "openai/gpt-4o-mini"
	}
	if cfg.Models.Auditor == "" {
		cfg.Models.Auditor = "openai/gpt-4o-mini"
	}
	if cfg.Models.DefaultPricing == "" {
		cfg.Models.DefaultPricing = "openai/gpt-4o-mini"
	}

	// Search defaults
	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "tavily"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 30000
	}
	if cfg.Search.CostQuick == 0 {
		cfg.Search.CostQuick = 0.004
	}
	if cfg.Search.CostFull == 0 {
		cfg.Search.CostFull = 0.015
	}
	if cfg.Search.Cache.ExchangeRateTTLMinutes == 0 {
		cfg.Search.Cache.ExchangeRateTTLMinutes = 60
	}
	if cfg.Search.Cache.RegulationTTLMinutes == 0 {
		cfg.Search.Cache.RegulationTTLMinutes = 24 * 60
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = "regulations"
	}

	if cfg.Router.Bias == nil {
		cfg.Router.Bias = make(map[string]float64)
	}

	// Auditor defaults
	if cfg.Auditor.DefaultConfidence == 0 {
		cfg.Auditor.DefaultConfidence = 0.85
	}
	if cfg.Auditor.NearPerfectThreshold == 0 {
		cfg.Auditor.NearPerfectThreshold = 0.95
	}

	if cfg.RegistryPath == "" {
		cfg.RegistryPath = "configs/agents.yml"
	}
	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = "configs/prompts"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required (set OPENROUTER_API_KEY)")
	}

	if cfg.Search.Enabled {
		switch cfg.Search.Backend {
		case "tavily":
			if cfg.Search.APIKey == "" {
				return fmt.Errorf("search.api_key is required for the tavily backend (set TAVILY_API_KEY)")
			}
		case "elasticsearch":
			if len(cfg.Elasticsearch.Addresses) == 0 {
				return fmt.Errorf("elasticsearch.addresses is required for the elasticsearch search backend")
			}
		default:
			return fmt.Errorf("unknown search.backend %q", cfg.Search.Backend)
		}
	}

	for domain, weight := range cfg.Router.Bias {
		if weight < 0 {
			return fmt.Errorf("router.bias.%s must not be negative", domain)
		}
	}

	if cfg.Auditor.NearPerfectThreshold > 1 {
		return fmt.Errorf("auditor.near_perfect_threshold must be within [0, 1]")
	}

	return nil
}

// ValidateForWorkers adds the checks only the worker manager needs.
func (c *Config) ValidateForWorkers() error {
	if c.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
