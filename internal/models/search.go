// internal/models/search.go
package models

import "time"

// Source is one ranked search hit.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResult is the processed output of one search call. Cached results
// are shared between goroutines and must be treated as read-only.
type SearchResult struct {
	Summary          string    `json:"summary"`
	Sources          []Source  `json:"sources"`
	KeyFacts         []string  `json:"keyFacts"`
	SourcesConsulted []string  `json:"sourcesConsulted"`
	LastUpdated      time.Time `json:"lastUpdated"`
	Error            string    `json:"error,omitempty"`
}

// Usable reports whether the result can augment a prompt.
func (r *SearchResult) Usable() bool {
	return r != nil && r.Error == "" && len(r.Sources) > 0
}

// SearchMetadata is the provenance attached to every specialist answer.
type SearchMetadata struct {
	Used             bool     `json:"used"`
	Count            int      `json:"count"`
	SourcesConsulted []string `json:"sourcesConsulted"`
}
