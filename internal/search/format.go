package search

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"bureaucracy-oracle/internal/models"
)

const (
	promptSources      = 3
	promptPreviewRunes = 200
	promptAmounts      = 5
)

var usdPattern = regexp.MustCompile(`USD?\s*(\d+(?:\.\d+)?)`)

// FormatForPrompt renders a result as a block appended to the specialist's
// user message. Unusable results render as the empty string.
func FormatForPrompt(r *models.SearchResult) string {
	if !r.Usable() {
		return ""
	}

	sources := r.Sources
	if len(sources) > promptSources {
		sources = sources[:promptSources]
	}

	percents := map[string]bool{}
	amounts := map[string]bool{}
	for _, s := range sources {
		for _, p := range percentPattern.FindAllString(s.Content, -1) {
			percents[p] = true
		}
		for _, m := range usdPattern.FindAllStringSubmatch(s.Content, -1) {
			amounts[m[1]] = true
		}
	}

	lines := []string{
		"📊 INFORMACIÓN ACTUALIZADA DE BÚSQUEDA WEB:",
		"⚠️ IMPORTANTE: Usa estos valores EXACTAMENTE como aparecen:\n",
	}

	if len(percents) > 0 {
		lines = append(lines, "✓ PORCENTAJES ENCONTRADOS: "+strings.Join(sortedKeys(percents), ", "))
	}
	if len(amounts) > 0 {
		list := sortedKeys(amounts)
		if len(list) > promptAmounts {
			list = list[:promptAmounts]
		}
		lines = append(lines, "✓ MONTOS USD ENCONTRADOS: "+strings.Join(list, ", "))
	}
	if len(percents) > 0 || len(amounts) > 0 {
		lines = append(lines, "")
	}

	if r.Summary != "" {
		lines = append(lines, fmt.Sprintf("RESUMEN: %s\n", r.Summary))
	}

	if len(r.KeyFacts) > 0 {
		lines = append(lines, "DATOS CLAVE:")
		for _, f := range r.KeyFacts {
			lines = append(lines, "• "+f)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "FUENTES VERIFICADAS:")
	for i, s := range sources {
		preview := percentPattern.ReplaceAllString(truncateRunes(s.Content, promptPreviewRunes), "**$0**")
		lines = append(lines,
			fmt.Sprintf("\n%d. %s", i+1, s.Title),
			"   URL: "+s.URL,
			"   Contenido: "+preview+"...",
		)
	}

	lines = append(lines,
		"\nActualizado: "+r.LastUpdated.Format(time.RFC3339),
		"=== FIN INFORMACIÓN DE BÚSQUEDA ===",
	)
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
