package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bureaucracy-oracle/internal/common/config"
	"bureaucracy-oracle/internal/common/logger"
	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/llm/llmtest"
	"bureaucracy-oracle/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `
version: "1"
domains:
  - slug: comex
    name: Comercio Exterior
    description: Importación, exportación y aranceles
    search:
      include_domains: [afip.gob.ar]
      keywords: [arancel, NCM]
      triggers: [notebook]
      facts: [tariffs]
  - slug: bcra
    name: Banco Central
    description: Cambios
`

type fakeSearchBackend struct {
	mu      sync.Mutex
	queries []search.Query
}

func (f *fakeSearchBackend) Name() string { return "fake" }

func (f *fakeSearchBackend) Search(ctx context.Context, q search.Query) (*search.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return &search.Response{
		Answer: "Las notebooks tributan 16% de arancel",
		Hits: []search.Hit{{
			Title:   "Posición NCM 8471.30",
			URL:     "https://www.afip.gob.ar/aranceles",
			Content: "Resolución 5/2024: el arancel para notebooks es 16%",
			Score:   0.9,
		}},
	}, nil
}

func writeFixtures(t *testing.T) *config.Config {
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "agents.yml")
	require.NoError(t, os.WriteFile(registryPath, []byte(testRegistry), 0o644))

	promptDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.Mkdir(promptDir, 0o755))
	for name, text := range map[string]string{
		"router":        "ROUTER",
		"comex":         "COMEX",
		"bcra":          "BCRA",
		"auditor":       "AUDIT SINGLE",
		"auditor_multi": "AUDIT MULTI",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(promptDir, name+".md"), []byte(text), 0o644))
	}

	return &config.Config{
		RegistryPath: registryPath,
		Prompts:      config.PromptsConfig{Dir: promptDir},
		Search: config.SearchConfig{
			Enabled:   true,
			CostQuick: 0.004,
			CostFull:  0.015,
			Cache:     config.SearchCacheConfig{ExchangeRateTTLMinutes: 60, RegulationTTLMinutes: 1440},
		},
		Auditor: config.AuditorConfig{
			MultiEnabled:         true,
			DefaultConfidence:    0.85,
			NearPerfectThreshold: 0.95,
		},
		Workers: map[string]config.WorkerConfig{},
	}
}

func scripted() *llmtest.Backend {
	return &llmtest.Backend{
		Respond: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			switch {
			case strings.HasPrefix(req.System, "ROUTER"):
				return llmtest.Reply(`{"agent": "comex", "reason": "aranceles", "confidence": 0.9}`), nil
			case strings.HasPrefix(req.System, "COMEX"):
				return llmtest.Reply(`{"answer": "Arancel 16%", "regulations": ["Resolución 5/2024"], "confidence": 0.96}`), nil
			case strings.HasPrefix(req.System, "AUDIT MULTI"):
				return llmtest.Reply(`{"status": "Aprobado", "motivo_auditoria": "ok", "respuesta_final": {
					"titulo": "🎯 Notebooks", "respuesta_directa": "✅ 16%", "detalles": ["Arancel 16%"],
					"normativa_aplicable": ["Resolución 5/2024"], "proxima_accion": "👉 Consultar NCM"}}`), nil
			}
			return llmtest.Reply(`{}`), nil
		},
	}
}

func TestBuild_RunsPipelineWithSharedSearchCache(t *testing.T) {
	cfg := writeFixtures(t)
	searchBackend := &fakeSearchBackend{}
	backend := scripted()

	c, err := Build(cfg, logger.NewTestLogger(t), Options{Backend: backend, SearchBackend: searchBackend})
	require.NoError(t, err)
	assert.Nil(t, c.Elastic)

	question := "¿Cuál es el arancel actual para importar notebooks?"
	first := c.Orchestrator.Process(context.Background(), question)
	second := c.Orchestrator.Process(context.Background(), question)

	require.True(t, first.Success, first.Message)
	require.True(t, second.Success)
	assert.Len(t, searchBackend.queries, 1, "second question should be served from the cache")
	assert.Equal(t, search.DepthFull, searchBackend.queries[0].Depth)
	assert.Equal(t, []string{"afip.gob.ar"}, searchBackend.queries[0].IncludeDomains)

	// routing, specialist and audit at 0.00045 each, plus one full search
	assert.InDelta(t, 3*0.00045+0.015, first.Cost, 1e-9)
	assert.InDelta(t, 3*0.00045, second.Cost, 1e-9)

	var specialistUser string
	for _, call := range backend.Calls() {
		if call.System == "COMEX" {
			specialistUser = call.User
			break
		}
	}
	assert.Contains(t, specialistUser, "INFORMACIÓN ACTUALIZADA DE BÚSQUEDA WEB")

	assert.Contains(t, first.Response, "*Consultado: COMEX · Búsquedas web: 1*")
	assert.Contains(t, first.Response, "*Confianza: 96%*")
	assert.NotContains(t, first.Response, "Desglose de confianza")
}

func TestBuild_SearchDisabled(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Search.Enabled = false

	c, err := Build(cfg, logger.NewTestLogger(t), Options{Backend: scripted()})
	require.NoError(t, err)
	assert.Equal(t, search.DepthNone, c.Search.NeedsSearch("¿Cuál es el arancel actual?", "comex"))
}

func TestBuild_MissingRegistry(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.RegistryPath = filepath.Join(t.TempDir(), "missing.yml")

	_, err := Build(cfg, logger.NewTestLogger(t), Options{Backend: scripted()})
	assert.Error(t, err)
}

func TestPriceTable_UsesConfiguredPrices(t *testing.T) {
	table := priceTable(config.ModelsConfig{
		DefaultPricing: "openai/gpt-4o",
		Pricing: []config.ModelPrice{
			{Model: "openai/gpt-4o", InputPerMillion: 5, OutputPerMillion: 15},
		},
	})

	cost := table.Cost("unknown/model", llm.Usage{PromptTokens: 1_000_000, CompletionTokens: 0})
	assert.InDelta(t, 5.0, cost, 1e-9)
}
