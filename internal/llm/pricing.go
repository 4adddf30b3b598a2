package llm

// Price is USD per million tokens.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricingModel prices any model missing from the table.
const DefaultPricingModel = "openai/gpt-4o-mini"

// DefaultPrices returns the built-in price list.
func DefaultPrices() map[string]Price {
	return map[string]Price{
		"openai/gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
		"openai/gpt-4o":      {InputPerMillion: 5.00, OutputPerMillion: 15.00},
	}
}

// PriceTable converts token usage into money.
type PriceTable struct {
	prices       map[string]Price
	defaultModel string
}

// NewPriceTable builds a table. A nil map uses DefaultPrices; an empty
// defaultModel uses DefaultPricingModel.
func NewPriceTable(prices map[string]Price, defaultModel string) *PriceTable {
	if prices == nil {
		prices = DefaultPrices()
	}
	if defaultModel == "" {
		defaultModel = DefaultPricingModel
	}
	return &PriceTable{prices: prices, defaultModel: defaultModel}
}

// Lookup returns the price for model, falling back to the default model.
func (t *PriceTable) Lookup(model string) Price {
	if p, ok := t.prices[model]; ok {
		return p
	}
	return t.prices[t.defaultModel]
}

// Cost returns the USD cost of one call.
func (t *PriceTable) Cost(model string, usage Usage) float64 {
	p := t.Lookup(model)
	return float64(usage.PromptTokens)*p.InputPerMillion/1_000_000 +
		float64(usage.CompletionTokens)*p.OutputPerMillion/1_000_000
}
