package search

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"bureaucracy-oracle/internal/models"
	"bureaucracy-oracle/pkg/registry"
)

const (
	maxSources        = 5
	maxContentRunes   = 500
	maxCitesPerSource = 2
	maxAmounts        = 5
	shownAmounts      = 3
)

var (
	citationPattern = regexp.MustCompile(`(?:Resolución|Comunicación|Decreto|NCM)\s*(?:N°|Nº|A)?\s*[\d./-]+`)
	percentPattern  = regexp.MustCompile(`\d+(?:\.\d+)?%`)
	amountPattern   = regexp.MustCompile(`(?:USD?\s*)?(?:\$\s*)?\d+(?:\.\d+)?`)
)

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// process turns a backend response into a SearchResult, extracting the
// facts the domain profile asks for.
func process(resp *Response, profile DomainProfile, now time.Time) *models.SearchResult {
	hits := resp.Hits
	if len(hits) > maxSources {
		hits = hits[:maxSources]
	}

	result := &models.SearchResult{
		Summary:          resp.Answer,
		Sources:          make([]models.Source, 0, len(hits)),
		KeyFacts:         []string{},
		SourcesConsulted: []string{},
		LastUpdated:      now,
	}

	for _, hit := range hits {
		src := models.Source{
			Title:   hit.Title,
			URL:     hit.URL,
			Content: truncateRunes(hit.Content, maxContentRunes),
			Score:   hit.Score,
		}
		result.Sources = append(result.Sources, src)

		if host := hostOf(hit.URL); host != "" {
			cites := citationPattern.FindAllString(hit.Title+" "+hit.Content, maxCitesPerSource)
			if len(cites) == 0 {
				result.SourcesConsulted = append(result.SourcesConsulted, host)
			}
			for _, c := range cites {
				result.SourcesConsulted = append(result.SourcesConsulted, host+" ("+strings.TrimSpace(c)+")")
			}
		}

		for _, fact := range profile.Facts {
			if f := extractFact(fact, src.Content); f != "" {
				result.KeyFacts = append(result.KeyFacts, f)
			}
		}
	}

	return result
}

func extractFact(kind, content string) string {
	switch kind {
	case registry.FactTariffs:
		if !strings.Contains(strings.ToLower(content), "arancel") {
			return ""
		}
		pcts := unique(percentPattern.FindAllString(content, -1))
		if len(pcts) == 0 {
			return ""
		}
		return "Aranceles: " + strings.Join(pcts, ", ")
	case registry.FactAmounts:
		amounts := amountPattern.FindAllString(content, -1)
		if len(amounts) == 0 || len(amounts) > maxAmounts {
			return ""
		}
		if len(amounts) > shownAmounts {
			amounts = amounts[:shownAmounts]
		}
		for i := range amounts {
			amounts[i] = strings.TrimSpace(amounts[i])
		}
		return "Montos: " + strings.Join(amounts, ", ")
	}
	return ""
}
