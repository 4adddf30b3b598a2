package auditresponse

import (
	"fmt"
	"sort"
	"strings"

	"bureaucracy-oracle/internal/models"
)

const missingSummary = "Respuesta sin resumen disponible"

// orderAgents puts the primary agent first and the rest in slug order.
func orderAgents(answers map[string]*models.SpecialistAnswer, primary string) []string {
	agents := make([]string, 0, len(answers))
	for agent := range answers {
		if agent != primary {
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)
	if _, ok := answers[primary]; ok {
		agents = append([]string{primary}, agents...)
	}
	return agents
}

// leadAgent is the primary agent, or the first agent that answered when
// the primary failed. It owns untagged bullets and the overall confidence.
func leadAgent(answers map[string]*models.SpecialistAnswer, agents []string, primary string) string {
	if !failed(answers[primary]) {
		return primary
	}
	for _, agent := range agents {
		if !failed(answers[agent]) {
			return agent
		}
	}
	return primary
}

func tag(agent string) string {
	return "[" + strings.ToUpper(agent) + "]"
}

func failed(a *models.SpecialistAnswer) bool {
	return a.Failed() || a.Payload.Error != ""
}

func failureText(a *models.SpecialistAnswer) string {
	if a == nil {
		return "sin respuesta"
	}
	if a.Payload.Error != "" {
		return a.Payload.Error
	}
	return a.Error
}

// mergeDetails tags every bullet with its source agent and guarantees that
// each successful agent contributes at least one bullet.
func mergeDetails(details []string, answers map[string]*models.SpecialistAnswer, agents []string, lead string) []string {
	present := make(map[string]bool, len(agents))
	out := make([]string, 0, len(details)+len(agents))

	for _, d := range details {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		tagged := false
		upper := strings.ToUpper(d)
		for _, agent := range agents {
			if strings.Contains(upper, tag(agent)) {
				present[agent] = true
				tagged = true
			}
		}
		if !tagged {
			d = tag(lead) + " " + d
			present[lead] = true
		}
		out = append(out, d)
	}

	for _, agent := range agents {
		a := answers[agent]
		if present[agent] || failed(a) {
			continue
		}
		out = append(out, tag(agent)+" "+summaryOf(a))
	}
	return out
}

func summaryOf(a *models.SpecialistAnswer) string {
	switch {
	case a.Payload.Answer != "":
		return a.Payload.Answer
	case len(a.Payload.Steps) > 0:
		return a.Payload.Steps[0]
	case len(a.Payload.Regulations) > 0:
		return a.Payload.Regulations[0]
	}
	return missingSummary
}

// mergeWarnings appends one line per failed agent.
func mergeWarnings(warnings string, answers map[string]*models.SpecialistAnswer, agents []string) string {
	lines := []string{}
	if w := strings.TrimSpace(warnings); w != "" {
		lines = append(lines, w)
	}
	for _, agent := range agents {
		a := answers[agent]
		if !failed(a) {
			continue
		}
		lines = append(lines, fmt.Sprintf("⚠️ No se pudo consultar %s: %s", tag(agent), failureText(a)))
	}
	return strings.Join(lines, "\n")
}

// unionRegulations keeps the first spelling of each citation, compared
// case-insensitively, audit output first and then each agent in order.
func unionRegulations(audited []string, answers map[string]*models.SpecialistAnswer, agents []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(r string) {
		r = strings.TrimSpace(r)
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(r, "📋")))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, r)
	}

	for _, r := range audited {
		add(r)
	}
	for _, agent := range agents {
		if a := answers[agent]; a != nil {
			for _, r := range a.Payload.Regulations {
				add(r)
			}
		}
	}
	return out
}

// aggregateSearch sums search counts and prefixes each source with its
// agent tag.
func aggregateSearch(answers map[string]*models.SpecialistAnswer, agents []string) (int, []string) {
	count := 0
	sources := []string{}
	for _, agent := range agents {
		a := answers[agent]
		if a == nil {
			continue
		}
		count += a.SearchMetadata.Count
		for _, s := range a.SearchMetadata.SourcesConsulted {
			sources = append(sources, tag(agent)+" "+s)
		}
	}
	return count, sources
}
