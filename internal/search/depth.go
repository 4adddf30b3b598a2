package search

import (
	"strconv"
	"strings"
	"time"
)

// Depth is how thoroughly a question is searched.
type Depth string

const (
	DepthNone  Depth = "none"
	DepthQuick Depth = "quick"
	DepthFull  Depth = "full"
)

// MaxResults is the number of hits requested for the depth.
func (d Depth) MaxResults() int {
	if d == DepthFull {
		return 5
	}
	return 1
}

// Mode is the backend search mode for the depth.
func (d Depth) Mode() string {
	if d == DepthFull {
		return "advanced"
	}
	return "basic"
}

var priorityCategories = []string{
	"import", "export", "arancel", "límite", "requisito",
	"tarifa", "impuesto", "licencia", "certificado",
}

var temporalTerms = []string{
	"actual", "hoy", "vigente", "último", "última", "ahora", "reciente", "nuevo",
}

func temporalTriggers(now time.Time) []string {
	year := now.Year()
	return append(append([]string{}, temporalTerms...),
		strconv.Itoa(year), strconv.Itoa(year+1))
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(text, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// classify returns full when any trigger family matches, quick otherwise.
func classify(question string, domainTriggers []string, now time.Time) Depth {
	q := strings.ToLower(question)
	if containsAny(q, priorityCategories) ||
		containsAny(q, temporalTriggers(now)) ||
		containsAny(q, domainTriggers) {
		return DepthFull
	}
	return DepthQuick
}
