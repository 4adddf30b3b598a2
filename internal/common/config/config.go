// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	OpenRouter    OpenRouterConfig        `mapstructure:"openrouter"`
	Models        ModelsConfig            `mapstructure:"models"`
	Search        SearchConfig            `mapstructure:"search"`
	Elasticsearch ElasticsearchConfig     `mapstructure:"elasticsearch"`
	Router        RouterConfig            `mapstructure:"router"`
	Auditor       AuditorConfig           `mapstructure:"auditor"`
	RegistryPath  string                  `mapstructure:"registry_path"`
	Prompts       PromptsConfig           `mapstructure:"prompts"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// --- Pipeline Configuration ---

// OpenRouterConfig configures the completion backend.
type OpenRouterConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	Referer          string `mapstructure:"referer"`
	Title            string `mapstructure:"title"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
	MaxRetries       int    `mapstructure:"max_retries"`
	BreakerThreshold uint32 `mapstructure:"breaker_threshold"`
	BreakerCooldown  int    `mapstructure:"breaker_cooldown"` // milliseconds
}

// ModelsConfig selects a model per stage and prices them.
type ModelsConfig struct {
	Router         string       `mapstructure:"router"`
	Specialist     string       `mapstructure:"specialist"`
	Auditor        string       `mapstructure:"auditor"`
	DefaultPricing string       `mapstructure:"default_pricing"`
	Pricing        []ModelPrice `mapstructure:"pricing"`
}

// ModelPrice is USD per million tokens. Listed rather than keyed because
// model ids contain dots.
type ModelPrice struct {
	Model            string  `mapstructure:"model"`
	InputPerMillion  float64 `mapstructure:"input_per_million"`
	OutputPerMillion float64 `mapstructure:"output_per_million"`
}

type SearchConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Backend   string            `mapstructure:"backend"` // tavily | elasticsearch
	APIKey    string            `mapstructure:"api_key"`
	BaseURL   string            `mapstructure:"base_url"`
	Timeout   int               `mapstructure:"timeout"` // milliseconds
	CostQuick float64           `mapstructure:"cost_quick"`
	CostFull  float64           `mapstructure:"cost_full"`
	Cache     SearchCacheConfig `mapstructure:"cache"`
}

type SearchCacheConfig struct {
	MaxEntries             int `mapstructure:"max_entries"`
	ExchangeRateTTLMinutes int `mapstructure:"exchange_rate_ttl_minutes"`
	RegulationTTLMinutes   int `mapstructure:"regulation_ttl_minutes"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// RouterConfig holds per-domain routing weights; 1.0 is neutral.
type RouterConfig struct {
	Bias map[string]float64 `mapstructure:"bias"`
}

type AuditorConfig struct {
	MultiEnabled         bool           `mapstructure:"multi_enabled"`
	DefaultConfidence    float64        `mapstructure:"default_confidence"`
	NearPerfectThreshold float64        `mapstructure:"near_perfect_threshold"`
	Presets              []PresetConfig `mapstructure:"presets"`
}

// PresetConfig pins the breakdown for one exact confidence score.
type PresetConfig struct {
	Score  float64        `mapstructure:"score"`
	Points map[string]int `mapstructure:"points"`
}

type PromptsConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}
