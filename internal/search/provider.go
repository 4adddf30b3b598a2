package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	apperrors "bureaucracy-oracle/internal/common/errors"
	"bureaucracy-oracle/internal/common/metrics"
	"bureaucracy-oracle/internal/models"
)

// ProviderConfig configures the search provider.
type ProviderConfig struct {
	Enabled   bool
	CostQuick float64
	CostFull  float64
	Now       func() time.Time
}

// Outcome is one provider call: the result plus what it cost.
type Outcome struct {
	Result   *models.SearchResult
	Cost     float64
	CacheHit bool
	Depth    Depth
}

// Metadata is the provenance attached to a specialist answer.
func (o *Outcome) Metadata() models.SearchMetadata {
	if o == nil || !o.Result.Usable() {
		return models.SearchMetadata{Used: false, Count: 0, SourcesConsulted: []string{}}
	}
	return models.SearchMetadata{
		Used:             true,
		Count:            1,
		SourcesConsulted: append([]string{}, o.Result.SourcesConsulted...),
	}
}

// Provider decides when to search, builds domain-tuned queries and caches
// processed results. One instance is shared by every specialist.
type Provider struct {
	config   ProviderConfig
	backend  Backend
	cache    *Cache
	profiles map[string]DomainProfile
	logger   Logger
}

func NewProvider(config ProviderConfig, backend Backend, cache *Cache, profiles map[string]DomainProfile, log Logger) *Provider {
	if config.CostQuick == 0 {
		config.CostQuick = 0.004
	}
	if config.CostFull == 0 {
		config.CostFull = 0.015
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Provider{
		config:   config,
		backend:  backend,
		cache:    cache,
		profiles: profiles,
		logger: log.With(map[string]interface{}{
			"component": "search",
		}),
	}
}

func (p *Provider) enabled() bool {
	return p != nil && p.config.Enabled && p.backend != nil
}

// NeedsSearch classifies how deeply a question should be searched.
func (p *Provider) NeedsSearch(question, domain string) Depth {
	if !p.enabled() {
		return DepthNone
	}
	return classify(question, p.profiles[domain].Triggers, p.config.Now())
}

// BuildQuery appends domain keywords, the current and prior year and the
// domain suffix to the question.
func (p *Provider) BuildQuery(question, domain string) string {
	profile := p.profiles[domain]
	year := p.config.Now().Year()
	parts := []string{
		question,
		strings.Join(profile.Keywords, " "),
		strconv.Itoa(year),
		strconv.Itoa(year - 1),
	}
	if profile.Suffix != "" {
		parts = append(parts, profile.Suffix)
	}
	return strings.Join(parts, " ")
}

func (p *Provider) costFor(d Depth) float64 {
	if d == DepthFull {
		return p.config.CostFull
	}
	return p.config.CostQuick
}

// Search never fails: backend errors produce an error-tagged empty result
// that is not cached.
func (p *Provider) Search(ctx context.Context, question, domain string, depth Depth) *Outcome {
	if !p.enabled() || depth == DepthNone {
		return &Outcome{Result: failed("search disabled", p.config.Now()), Depth: DepthNone}
	}
	now := p.config.Now()

	if cached, ok := p.cache.Get(question, domain); ok {
		p.logger.Info("search cache hit", map[string]interface{}{
			"domain": domain,
		})
		return &Outcome{Result: cached, CacheHit: true, Depth: depth}
	}

	profile := p.profiles[domain]
	resp, err := p.backend.Search(ctx, Query{
		Text:           p.BuildQuery(question, domain),
		Depth:          depth,
		MaxResults:     depth.MaxResults(),
		IncludeDomains: profile.IncludeDomains,
		IncludeAnswer:  true,
	})
	if err != nil {
		metrics.SearchRequests.WithLabelValues(domain, string(depth), "error").Inc()
		stdErr := apperrors.NewSearchFailedError(err)
		p.logger.Warn("search failed, continuing without results", map[string]interface{}{
			"domain":    domain,
			"backend":   p.backend.Name(),
			"error":     stdErr.Details,
			"code":      stdErr.Code,
			"retryable": stdErr.Retryable,
		})
		return &Outcome{Result: failed(err.Error(), now), Depth: depth}
	}
	metrics.SearchRequests.WithLabelValues(domain, string(depth), "ok").Inc()

	result := process(resp, profile, now)
	p.cache.Set(question, domain, result)

	p.logger.Info("search completed", map[string]interface{}{
		"domain":  domain,
		"depth":   string(depth),
		"sources": len(result.Sources),
	})

	return &Outcome{Result: result, Cost: p.costFor(depth), Depth: depth}
}

func failed(msg string, now time.Time) *models.SearchResult {
	return &models.SearchResult{
		Sources:          []models.Source{},
		KeyFacts:         []string{},
		SourcesConsulted: []string{},
		LastUpdated:      now,
		Error:            msg,
	}
}
