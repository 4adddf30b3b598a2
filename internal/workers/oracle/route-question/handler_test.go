package routequestion

import (
	"context"
	"strings"
	"testing"

	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/llm/llmtest"
	"bureaucracy-oracle/internal/models"
	"bureaucracy-oracle/internal/prompts"
	"bureaucracy-oracle/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Info(msg string, fields map[string]interface{})  { l.t.Logf("INFO: %s %v", msg, fields) }
func (l *TestLogger) Warn(msg string, fields map[string]interface{})  { l.t.Logf("WARN: %s %v", msg, fields) }
func (l *TestLogger) Error(msg string, fields map[string]interface{}) { l.t.Logf("ERROR: %s %v", msg, fields) }
func (l *TestLogger) With(fields map[string]interface{}) Logger       { return l }

// ==========================
// Test Helper Functions
// ==========================

const testRegistry = `
domains:
  - slug: bcra
    name: Banco Central
    description: Cambios y pagos al exterior
  - slug: comex
    name: Comercio Exterior
  - slug: senasa
    name: Sanidad Agroalimentaria
`

func newTestHandler(t *testing.T, backend llm.Backend, bias map[string]float64) *Handler {
	t.Helper()
	reg, err := registry.Parse([]byte(testRegistry))
	require.NoError(t, err)

	cfg := LoadConfig()
	cfg.Bias = bias
	store := prompts.FromMap(map[string]string{"router": "Sos el router."})
	return NewHandler(cfg, backend, nil, store, reg, &TestLogger{t: t})
}

// ==========================
// Decision Normalization Tests
// ==========================

func TestResolveDecision(t *testing.T) {
	known := func(s string) bool { return s == "bcra" || s == "comex" || s == "senasa" }

	tests := []struct {
		name     string
		raw      map[string]interface{}
		expected models.RouteDecision
	}{
		{
			name: "legacy single agent",
			raw:  map[string]interface{}{"agent": "BCRA", "reason": "dólar", "confidence": 0.7},
			expected: models.RouteDecision{
				Agents: []string{"bcra"}, PrimaryAgent: "bcra", Reason: "dólar", Confidence: 0.7,
			},
		},
		{
			name: "legacy missing confidence",
			raw:  map[string]interface{}{"agent": "comex", "reason": "arancel"},
			expected: models.RouteDecision{
				Agents: []string{"comex"}, PrimaryAgent: "comex", Reason: "arancel", Confidence: 0.8,
			},
		},
		{
			name: "legacy null agent",
			raw:  map[string]interface{}{"agent": nil},
			expected: models.RouteDecision{
				Agents: []string{}, PrimaryAgent: models.OutOfScope, Reason: "Invalid routing response", Confidence: 0.0,
			},
		},
		{
			name: "legacy out of scope",
			raw:  map[string]interface{}{"agent": "out_of_scope", "reason": "clima"},
			expected: models.RouteDecision{
				Agents: []string{}, PrimaryAgent: models.OutOfScope, Reason: "clima", Confidence: 0.8,
			},
		},
		{
			name: "current shape with case and duplicates",
			raw: map[string]interface{}{
				"agents":        []interface{}{"SENASA", "comex", "senasa"},
				"primary_agent": "Senasa",
				"reason":        "exportación de carne",
				"confidence":    0.9,
			},
			expected: models.RouteDecision{
				Agents: []string{"senasa", "comex"}, PrimaryAgent: "senasa", Reason: "exportación de carne", Confidence: 0.9,
			},
		},
		{
			name: "unknown agent dropped and primary repaired",
			raw: map[string]interface{}{
				"agents":        []interface{}{"afip", "comex"},
				"primary_agent": "afip",
				"confidence":    0.6,
			},
			expected: models.RouteDecision{
				Agents: []string{"comex"}, PrimaryAgent: "comex", Reason: "No reason provided", Confidence: 0.6,
			},
		},
		{
			name: "out of scope primary overrides agents",
			raw: map[string]interface{}{
				"agents":        []interface{}{"bcra"},
				"primary_agent": "out_of_scope",
				"reason":        "pregunta ambigua",
				"confidence":    0.4,
			},
			expected: models.RouteDecision{
				Agents: []string{}, PrimaryAgent: models.OutOfScope, Reason: "pregunta ambigua", Confidence: 0.4,
			},
		},
		{
			name: "missing primary takes first agent",
			raw: map[string]interface{}{
				"agents":     []interface{}{"comex", "bcra"},
				"reason":     "importación con pago al exterior",
				"confidence": 0.85,
			},
			expected: models.RouteDecision{
				Agents: []string{"comex", "bcra"}, PrimaryAgent: "comex", Reason: "importación con pago al exterior", Confidence: 0.85,
			},
		},
		{
			name: "missing fields",
			raw:  map[string]interface{}{},
			expected: models.RouteDecision{
				Agents: []string{}, PrimaryAgent: models.OutOfScope, Reason: "No reason provided", Confidence: 0.0,
			},
		},
		{
			name: "empty agents forces out of scope",
			raw:  map[string]interface{}{"agents": []interface{}{}, "primary_agent": "bcra", "reason": "nada"},
			expected: models.RouteDecision{
				Agents: []string{}, PrimaryAgent: models.OutOfScope, Reason: "nada", Confidence: 0.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDecision(tt.raw, known, &TestLogger{t: t})
			assert.Equal(t, tt.expected, *got)
		})
	}
}

func TestBiasNote(t *testing.T) {
	slugs := []string{"bcra", "comex", "senasa"}

	assert.Empty(t, biasNote(nil, slugs))
	assert.Empty(t, biasNote(map[string]float64{"bcra": 1.0, "comex": 1.0}, slugs))
	assert.Equal(t, "Bias adjustments: {comex: 1.50, senasa: 0.50}",
		biasNote(map[string]float64{"bcra": 1.0, "comex": 1.5, "senasa": 0.5, "afip": 2}, slugs))
}

// ==========================
// Route Tests
// ==========================

func TestRoute_MultiAgent(t *testing.T) {
	backend := llmtest.Static(`{"agents": ["senasa", "comex"], "primary_agent": "senasa", "reason": "Exportación sanitaria y aduanera", "confidence": 0.92}`)
	h := newTestHandler(t, backend, map[string]float64{"comex": 1.2})

	decision, cost := h.Route(context.Background(), "¿Cómo exportar carne vacuna a China?")

	assert.Equal(t, []string{"senasa", "comex"}, decision.Agents)
	assert.Equal(t, "senasa", decision.PrimaryAgent)
	assert.InDelta(t, 0.92, decision.Confidence, 1e-9)
	assert.InDelta(t, 0.00045, cost, 1e-9)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSONMode)
	assert.Equal(t, 0.1, calls[0].Temperature)
	assert.True(t, strings.HasPrefix(calls[0].System, "Sos el router."))
	assert.Contains(t, calls[0].System, "- bcra: Banco Central. Cambios y pagos al exterior")
	assert.Contains(t, calls[0].System, "Bias adjustments: {comex: 1.20}")
	assert.Equal(t, "Question: ¿Cómo exportar carne vacuna a China?", calls[0].User)
}

func TestRoute_SalvagedJSON(t *testing.T) {
	backend := llmtest.Static("Claro:\n```json\n{\"agent\": \"bcra\", \"reason\": \"cepo\", \"confidence\": 0.75}\n```")
	h := newTestHandler(t, backend, nil)

	decision, _ := h.Route(context.Background(), "¿Puedo comprar dólares?")

	assert.Equal(t, []string{"bcra"}, decision.Agents)
	assert.Equal(t, "bcra", decision.PrimaryAgent)
	assert.NotContains(t, backend.Calls()[0].System, "Bias adjustments")
}

func TestRoute_Failures(t *testing.T) {
	tests := []struct {
		name    string
		backend llm.Backend
		reason  string
	}{
		{
			name:    "unauthorized",
			backend: llmtest.Failing(&llm.ClassifiedError{Kind: llm.KindAuth, StatusCode: 401}),
			reason:  "Error: API key inválida o no configurada",
		},
		{
			name:    "rate limited",
			backend: llmtest.Failing(&llm.ClassifiedError{Kind: llm.KindRateLimit, StatusCode: 429}),
			reason:  "Error: Límite de tasa excedido",
		},
		{
			name:    "timeout",
			backend: llmtest.Failing(context.DeadlineExceeded),
			reason:  "Error: Timeout al conectar con OpenRouter",
		},
		{
			name:    "not json",
			backend: llmtest.Static("no sé"),
			reason:  "Error: Respuesta inválida de OpenRouter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.backend, nil)
			decision, cost := h.Route(context.Background(), "pregunta")

			assert.Equal(t, models.OutOfScopeDecision(tt.reason), decision)
			assert.Zero(t, cost)
		})
	}
}

func TestRoute_FallbackPrompt(t *testing.T) {
	reg, err := registry.Parse([]byte(testRegistry))
	require.NoError(t, err)
	backend := llmtest.Static(`{"agents": [], "primary_agent": "out_of_scope", "reason": "fuera de alcance"}`)
	h := NewHandler(LoadConfig(), backend, nil, prompts.FromMap(nil), reg, &TestLogger{t: t})

	decision, _ := h.Route(context.Background(), "¿Va a llover?")

	assert.True(t, decision.IsOutOfScope())
	assert.Contains(t, backend.Calls()[0].System, "routing agent for Argentine regulations")
}

func TestExecute(t *testing.T) {
	h := newTestHandler(t, llmtest.Static(`{"agents": ["comex"], "primary_agent": "comex", "reason": "r", "confidence": 0.8}`), nil)

	out, err := h.Execute(context.Background(), &Input{Question: "¿Arancel de notebooks?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bcra", "comex", "senasa"}, out.AgentsAvailable)
	assert.Equal(t, "comex", out.Decision.PrimaryAgent)

	_, err = h.Execute(context.Background(), &Input{Question: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
