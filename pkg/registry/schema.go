// pkg/registry/schema.go
package registry

// Fact extractor names accepted in a domain's search block.
const (
	FactTariffs = "tariffs"
	FactAmounts = "amounts"
)

// Registry is the static catalogue of specialist domains.
type Registry struct {
	Version string   `yaml:"version"`
	Domains []Domain `yaml:"domains"`
}

// Domain describes one specialist.
type Domain struct {
	Slug        string       `yaml:"slug"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Prompt      string       `yaml:"prompt,omitempty"`
	Temperature float64      `yaml:"temperature,omitempty"`
	Search      SearchConfig `yaml:"search"`
}

// SearchConfig tunes web search for a domain.
type SearchConfig struct {
	IncludeDomains []string `yaml:"include_domains,omitempty"`
	Keywords       []string `yaml:"keywords,omitempty"`
	Triggers       []string `yaml:"triggers,omitempty"`
	Suffix         string   `yaml:"suffix,omitempty"`
	Facts          []string `yaml:"facts,omitempty"`
}
