package routequestion

import (
	"fmt"
	"sort"
	"strings"

	"bureaucracy-oracle/internal/models"
)

const (
	defaultReason    = "No reason provided"
	invalidReason    = "Invalid routing response"
	legacyConfidence = 0.8
)

// resolveDecision turns raw model output into the canonical decision. Two
// input shapes exist: the legacy {"agent": ...} object and the current
// {"agents": [...], "primary_agent": ...} one. Only the canonical type
// leaves this function.
func resolveDecision(raw map[string]interface{}, known func(string) bool, log Logger) *models.RouteDecision {
	_, hasAgents := raw["agents"]
	agentValue, hasAgent := raw["agent"]

	var d *models.RouteDecision
	if hasAgent && !hasAgents {
		d = fromLegacy(agentValue, raw)
	} else {
		d = fromCurrent(raw)
	}

	return canonicalize(d, known, log)
}

func fromLegacy(agentValue interface{}, raw map[string]interface{}) *models.RouteDecision {
	agent, _ := agentValue.(string)
	agent = normalizeSlug(agent)
	if agent == "" {
		return models.OutOfScopeDecision(stringOr(raw["reason"], invalidReason))
	}

	d := &models.RouteDecision{
		Agents:       []string{agent},
		PrimaryAgent: agent,
		Reason:       stringOr(raw["reason"], defaultReason),
		Confidence:   floatOr(raw["confidence"], legacyConfidence),
	}
	if agent == models.OutOfScope {
		d.Agents = []string{}
	}
	return d
}

func fromCurrent(raw map[string]interface{}) *models.RouteDecision {
	primary := raw["primary_agent"]
	if primary == nil {
		primary = raw["primaryAgent"]
	}
	return &models.RouteDecision{
		Agents:       models.StringList(raw["agents"]),
		PrimaryAgent: normalizeSlug(stringOr(primary, "")),
		Reason:       stringOr(raw["reason"], defaultReason),
		Confidence:   floatOr(raw["confidence"], 0.0),
	}
}

func canonicalize(d *models.RouteDecision, known func(string) bool, log Logger) *models.RouteDecision {
	seen := make(map[string]bool, len(d.Agents))
	agents := make([]string, 0, len(d.Agents))
	for _, a := range d.Agents {
		slug := normalizeSlug(a)
		if slug == "" || slug == models.OutOfScope || seen[slug] {
			continue
		}
		if known != nil && !known(slug) {
			log.Warn("router selected unknown agent", map[string]interface{}{
				"agent": slug,
			})
			continue
		}
		seen[slug] = true
		agents = append(agents, slug)
	}
	d.Agents = agents

	// An explicit out_of_scope primary wins over any listed agents.
	switch {
	case len(agents) == 0 || d.PrimaryAgent == models.OutOfScope:
		d.Agents = []string{}
		d.PrimaryAgent = models.OutOfScope
	case !seen[d.PrimaryAgent]:
		d.PrimaryAgent = agents[0]
	}

	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	return d
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stringOr(v interface{}, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func floatOr(v interface{}, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return def
}

// biasNote lists non-neutral weights for known domains, or "" when every
// weight is 1.0.
func biasNote(bias map[string]float64, slugs []string) string {
	var parts []string
	for _, slug := range slugs {
		w, ok := bias[slug]
		if !ok || w == 1.0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %.2f", slug, w))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return "Bias adjustments: {" + strings.Join(parts, ", ") + "}"
}
