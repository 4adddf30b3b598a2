package main

import (
	"bytes"
	"testing"

	"bureaucracy-oracle/internal/models"
	pq "bureaucracy-oracle/internal/workers/oracle/process-question"

	"github.com/stretchr/testify/assert"
)

func sampleOutput() *pq.Output {
	return &pq.Output{
		Success:   true,
		RequestID: "req-1",
		Response:  "🎯 Título",
		Cost:      0.0123,
		Decision: &models.RouteDecision{
			Agents:       []string{"senasa", "comex"},
			PrimaryAgent: "senasa",
			Reason:       "exportación",
			Confidence:   0.9,
		},
		Answers: map[string]*models.SpecialistAnswer{
			"senasa": {Domain: "senasa", Cost: 0.002, SearchMetadata: models.SearchMetadata{
				Used: true, Count: 1, SourcesConsulted: []string{"senasa.gob.ar"},
			}},
			"comex": {Domain: "comex", Error: "HTTP 500"},
		},
		FlowTrace: []models.TraceStep{
			{Step: "routing", DurationMs: 120, Cost: 0.0004},
			{Step: "agent_senasa", Agent: "senasa", DurationMs: 900, Cost: 0.002},
			{Step: "audit_single", Agent: "senasa", DurationMs: 800, Cost: 0.001},
		},
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, sampleOutput())

	out := buf.String()
	assert.Contains(t, out, "🎯 Título")
	assert.Contains(t, out, "🤝 Agents consulted: senasa, comex")
	assert.Contains(t, out, "💰 Total cost: $0.0123")
}

func TestPrintResult_OutOfScope(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &pq.Output{Message: "fuera de alcance", Cost: 0.0004})

	assert.Contains(t, buf.String(), "❌ fuera de alcance")
	assert.NotContains(t, buf.String(), "Agents consulted")
}

func TestPrintDebug(t *testing.T) {
	var buf bytes.Buffer
	printDebug(&buf, sampleOutput())

	out := buf.String()
	assert.Contains(t, out, "request req-1")
	assert.Contains(t, out, "primary=senasa")
	assert.Contains(t, out, "[SENASA] search used=true count=1")
	assert.Contains(t, out, "  - senasa.gob.ar")
	assert.Contains(t, out, "[COMEX] search used=false count=0")
	assert.Contains(t, out, "  error: HTTP 500")
	assert.Contains(t, out, "audit_single (senasa)")
	assert.NotContains(t, out, "agent_senasa (senasa)")
}

func TestRun_RequiresQuestion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-debug"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Usage: oracle")
}
