package formatresponse

import (
	"fmt"
	"math"
	"strings"

	"bureaucracy-oracle/internal/confidence"
	"bureaucracy-oracle/internal/models"
)

// Render turns an audit result into user-facing markdown. It is pure: the
// same result and threshold always give the same text.
func Render(r *models.AuditResult, threshold float64) string {
	var b strings.Builder
	fr := r.FinalResponse

	if r.Status == models.StatusObserved {
		fmt.Fprintf(&b, "⚠️ *Respuesta observada por el auditor: %s*\n\n", r.Reason)
	}

	fmt.Fprintf(&b, "%s\n\n%s\n\n**Información Clave:**\n", fr.Title, fr.DirectAnswer)
	for _, d := range fr.Details {
		b.WriteString(d)
		b.WriteString("\n")
	}

	if len(fr.Regulations) > 0 {
		b.WriteString("\n**Normativa Aplicable:**\n")
		for _, n := range fr.Regulations {
			b.WriteString(n)
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n**¿Qué hacer ahora?**\n%s\n", fr.NextAction)

	if w := strings.TrimSpace(fr.Warnings); w != "" {
		fmt.Fprintf(&b, "\n%s\n", w)
	}

	b.WriteString("\n---\n")
	b.WriteString(footer(r.Metadata))

	score := r.Metadata.Confidence
	if score < threshold && r.Metadata.ConfidenceBreakdown != nil {
		b.WriteString("\n\n")
		b.WriteString(breakdownTable(*r.Metadata.ConfidenceBreakdown))
	}
	return b.String()
}

func footer(m models.AuditMetadata) string {
	agents := make([]string, 0, len(m.ConsultedAgents))
	for _, a := range m.ConsultedAgents {
		agents = append(agents, strings.ToUpper(a))
	}
	consulted := strings.Join(agents, ", ")
	if consulted == "" {
		consulted = "Sistema"
	}

	line := "*Consultado: " + consulted + "*"
	if m.SearchCount > 0 {
		line = fmt.Sprintf("*Consultado: %s · Búsquedas web: %d*", consulted, m.SearchCount)
	}
	return fmt.Sprintf("%s\n*Confianza: %d%%*", line, percent(m.Confidence))
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}

func breakdownTable(bd models.ConfidenceBreakdown) string {
	var b strings.Builder
	b.WriteString("**Desglose de confianza:**\n\n")
	b.WriteString("| Criterio | Puntos | |\n")
	b.WriteString("|---|---|---|\n")
	for _, c := range bd.Categories() {
		mark := "✗"
		if c.Points.Full() {
			mark = "✓"
		}
		fmt.Fprintf(&b, "| %s | %d/%d | %s |\n", confidence.LabelFor(c.Key), c.Points.Achieved, c.Points.Possible, mark)
	}
	total := bd.Total()
	fmt.Fprintf(&b, "| **Total** | **%d/%d** | |", total.Achieved, total.Possible)
	return b.String()
}
