// Package search augments specialist prompts with fresh web results.
package search

import (
	"context"

	"bureaucracy-oracle/pkg/registry"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Query is what a backend receives.
type Query struct {
	Text           string
	Depth          Depth
	MaxResults     int
	IncludeDomains []string
	IncludeAnswer  bool
}

// Hit is one ranked backend result.
type Hit struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Response is the raw backend answer before fact extraction.
type Response struct {
	Answer string
	Hits   []Hit
}

// Backend issues one external search.
type Backend interface {
	Search(ctx context.Context, q Query) (*Response, error)
	Name() string
}

// DomainProfile tunes query building and fact extraction per domain.
type DomainProfile struct {
	Slug           string
	IncludeDomains []string
	Keywords       []string
	Triggers       []string
	Suffix         string
	Facts          []string
}

// ProfilesFromRegistry builds one profile per registered domain.
func ProfilesFromRegistry(reg *registry.Registry) map[string]DomainProfile {
	profiles := make(map[string]DomainProfile, len(reg.Domains))
	for _, d := range reg.Domains {
		profiles[d.Slug] = DomainProfile{
			Slug:           d.Slug,
			IncludeDomains: d.Search.IncludeDomains,
			Keywords:       d.Search.Keywords,
			Triggers:       d.Search.Triggers,
			Suffix:         d.Search.Suffix,
			Facts:          d.Search.Facts,
		}
	}
	return profiles
}
