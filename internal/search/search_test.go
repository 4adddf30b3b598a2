package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureaucracy-oracle/internal/models"
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	queries []Query
	resp    *Response
	err     error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, q Query) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testProfiles() map[string]DomainProfile {
	return map[string]DomainProfile{
		"comex": {
			Slug:           "comex",
			IncludeDomains: []string{"afip.gob.ar"},
			Keywords:       []string{"NCM", "arancel"},
			Triggers:       []string{"ncm", "simi", "posición arancelaria"},
			Suffix:         "site:afip.gob.ar",
			Facts:          []string{"tariffs"},
		},
		"bcra": {
			Slug:     "bcra",
			Keywords: []string{"BCRA"},
			Triggers: []string{"cepo", "transferencia"},
			Facts:    []string{"amounts"},
		},
	}
}

func sampleResponse() *Response {
	return &Response{
		Answer: "El arancel vigente es 16%.",
		Hits: []Hit{
			{
				Title:   "Decreto 557/2023 - Aranceles",
				URL:     "https://www.afip.gob.ar/aranceles",
				Content: "El arancel de importación para notebooks es 16% y la tasa de estadística 3%.",
				Score:   0.91,
			},
			{
				Title:   "Guía de importación",
				URL:     "https://tarifar.com/guia",
				Content: "Pasos para importar.",
				Score:   0.5,
			},
		},
	}
}

func newTestProvider(t *testing.T, backend Backend, clock *fakeClock) (*Provider, *Cache) {
	cache, err := NewCache(CacheConfig{Now: clock.Now})
	require.NoError(t, err)
	p := NewProvider(ProviderConfig{Enabled: true, Now: clock.Now}, backend, cache, testProfiles(), &TestLogger{t: t})
	return p, cache
}

// ==========================
// Cache Tests
// ==========================

func TestCache_TTLByQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		ttl   time.Duration
	}{
		{"dollar", "¿Cuál es el dólar oficial?", time.Hour},
		{"exchange rate", "Tipo de cambio mayorista", time.Hour},
		{"quote without accent", "cotizacion del euro", time.Hour},
		{"regulation", "¿Qué es COMEX?", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cache, err := NewCache(CacheConfig{Now: clock.Now})
			require.NoError(t, err)

			result := &models.SearchResult{Summary: "x"}
			cache.Set(tt.query, "bcra", result)

			clock.Advance(tt.ttl - time.Second)
			got, ok := cache.Get(tt.query, "bcra")
			require.True(t, ok)
			assert.Same(t, result, got)

			clock.Advance(time.Second)
			_, ok = cache.Get(tt.query, "bcra")
			assert.False(t, ok)
			assert.Equal(t, 0, cache.Len(), "expired entry is removed on access")
		})
	}
}

func TestCache_KeyIncludesDomain(t *testing.T) {
	assert.Equal(t, Key("  hola ", "bcra"), Key("hola", "bcra"))
	assert.NotEqual(t, Key("hola", "bcra"), Key("hola", "comex"))
	assert.Len(t, Key("hola", "bcra"), 64)
}

func TestCache_BoundedEvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	cache, err := NewCache(CacheConfig{MaxEntries: 2, Now: clock.Now})
	require.NoError(t, err)

	cache.Set("a", "bcra", &models.SearchResult{Summary: "a"})
	cache.Set("b", "bcra", &models.SearchResult{Summary: "b"})
	_, ok := cache.Get("a", "bcra")
	require.True(t, ok)
	cache.Set("c", "bcra", &models.SearchResult{Summary: "c"})

	assert.Equal(t, 2, cache.Len())
	_, ok = cache.Get("b", "bcra")
	assert.False(t, ok)
	_, ok = cache.Get("a", "bcra")
	assert.True(t, ok)
}

// ==========================
// Depth Classification Tests
// ==========================

func TestProvider_NeedsSearch(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestProvider(t, &fakeBackend{}, clock)

	tests := []struct {
		question string
		domain   string
		expected Depth
	}{
		{"¿Qué es COMEX?", "comex", DepthQuick},
		{"¿Cuál es el arancel actual para importar notebooks?", "comex", DepthFull},
		{"¿Cómo consulto una posición NCM?", "comex", DepthFull},
		{"¿Qué cambió en 2026?", "bcra", DepthFull},
		{"¿Qué pasa con el cepo?", "bcra", DepthFull},
		{"¿Qué es el BCRA?", "bcra", DepthQuick},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.NeedsSearch(tt.question, tt.domain))
		})
	}
}

func TestProvider_NeedsSearch_Disabled(t *testing.T) {
	cache, err := NewCache(CacheConfig{})
	require.NoError(t, err)
	p := NewProvider(ProviderConfig{Enabled: false}, &fakeBackend{}, cache, testProfiles(), &TestLogger{t: t})

	assert.Equal(t, DepthNone, p.NeedsSearch("¿Cuál es el arancel actual?", "comex"))

	var nilProvider *Provider
	assert.Equal(t, DepthNone, nilProvider.NeedsSearch("arancel", "comex"))
}

func TestDepth_Parameters(t *testing.T) {
	assert.Equal(t, 5, DepthFull.MaxResults())
	assert.Equal(t, "advanced", DepthFull.Mode())
	assert.Equal(t, 1, DepthQuick.MaxResults())
	assert.Equal(t, "basic", DepthQuick.Mode())
}

// ==========================
// Provider Tests
// ==========================

func TestProvider_Search_CachesIdenticalQueries(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{resp: sampleResponse()}
	p, _ := newTestProvider(t, backend, clock)

	first := p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthFull)
	second := p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthFull)

	assert.Equal(t, 1, backend.Calls())
	assert.Same(t, first.Result, second.Result)
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 0.015, first.Cost)
	assert.Zero(t, second.Cost)
}

func TestProvider_Search_RefetchesAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{resp: sampleResponse()}
	p, _ := newTestProvider(t, backend, clock)

	p.Search(context.Background(), "cotización del dólar", "bcra", DepthQuick)
	clock.Advance(59 * time.Minute)
	p.Search(context.Background(), "cotización del dólar", "bcra", DepthQuick)
	assert.Equal(t, 1, backend.Calls())

	clock.Advance(time.Minute)
	out := p.Search(context.Background(), "cotización del dólar", "bcra", DepthQuick)
	assert.Equal(t, 2, backend.Calls())
	assert.Equal(t, 0.004, out.Cost)

	p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthQuick)
	clock.Advance(23 * time.Hour)
	p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthQuick)
	assert.Equal(t, 3, backend.Calls())
	clock.Advance(time.Hour)
	p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthQuick)
	assert.Equal(t, 4, backend.Calls())
}

func TestProvider_Search_FailureIsNotCached(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{err: errors.New("tavily http 500")}
	p, cache := newTestProvider(t, backend, clock)

	out := p.Search(context.Background(), "arancel", "comex", DepthFull)

	require.NotNil(t, out.Result)
	assert.Equal(t, "tavily http 500", out.Result.Error)
	assert.Empty(t, out.Result.Sources)
	assert.False(t, out.Result.Usable())
	assert.Zero(t, out.Cost)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, models.SearchMetadata{Used: false, Count: 0, SourcesConsulted: []string{}}, out.Metadata())
}

func TestProvider_Search_BackendParameters(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{resp: sampleResponse()}
	p, _ := newTestProvider(t, backend, clock)

	p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthFull)

	require.Len(t, backend.queries, 1)
	q := backend.queries[0]
	assert.Equal(t, "¿Arancel notebooks? NCM arancel 2025 2024 site:afip.gob.ar", q.Text)
	assert.Equal(t, DepthFull, q.Depth)
	assert.Equal(t, 5, q.MaxResults)
	assert.Equal(t, []string{"afip.gob.ar"}, q.IncludeDomains)
	assert.True(t, q.IncludeAnswer)
}

func TestProvider_Search_Disabled(t *testing.T) {
	backend := &fakeBackend{resp: sampleResponse()}
	clock := newFakeClock()
	p, _ := newTestProvider(t, backend, clock)

	out := p.Search(context.Background(), "arancel", "comex", DepthNone)

	assert.Equal(t, 0, backend.Calls())
	assert.False(t, out.Result.Usable())
	assert.False(t, out.Metadata().Used)
	assert.Equal(t, clock.Now(), out.Result.LastUpdated)
}

func TestProvider_Search_ConcurrentCallers(t *testing.T) {
	backend := &fakeBackend{resp: sampleResponse()}
	p, _ := newTestProvider(t, backend, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthFull)
			assert.True(t, out.Result.Usable())
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, backend.Calls(), 1)
	out := p.Search(context.Background(), "¿Arancel notebooks?", "comex", DepthFull)
	assert.True(t, out.CacheHit)
}

// ==========================
// Extraction Tests
// ==========================

func TestProcess_ExtractsFacts(t *testing.T) {
	now := newFakeClock().Now()
	result := process(sampleResponse(), testProfiles()["comex"], now)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "El arancel vigente es 16%.", result.Summary)
	assert.Equal(t, []string{"Aranceles: 16%, 3%"}, result.KeyFacts)
	assert.Equal(t, []string{"www.afip.gob.ar (Decreto 557/2023)", "tarifar.com"}, result.SourcesConsulted)
	assert.Equal(t, now, result.LastUpdated)
}

func TestProcess_LimitsSourcesAndContent(t *testing.T) {
	long := make([]rune, 800)
	for i := range long {
		long[i] = 'á'
	}
	resp := &Response{}
	for i := 0; i < 8; i++ {
		resp.Hits = append(resp.Hits, Hit{Title: "t", URL: "https://x.gob.ar", Content: string(long)})
	}

	result := process(resp, DomainProfile{}, time.Now())

	assert.Len(t, result.Sources, 5)
	assert.Len(t, []rune(result.Sources[0].Content), 500)
}

func TestProcess_CitationsCappedPerSource(t *testing.T) {
	resp := &Response{Hits: []Hit{{
		Title:   "Comunicación A 7030",
		URL:     "https://www.bcra.gob.ar/com",
		Content: "Modifica la Comunicación A 7001 y el Decreto 609/2019.",
	}}}

	result := process(resp, testProfiles()["bcra"], time.Now())

	assert.Equal(t, []string{
		"www.bcra.gob.ar (Comunicación A 7030)",
		"www.bcra.gob.ar (Comunicación A 7001)",
	}, result.SourcesConsulted)
}

func TestExtractFact(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		content  string
		expected string
	}{
		{"tariffs deduplicated", "tariffs", "El arancel es 16% (antes 16%, luego 20%)", "Aranceles: 16%, 20%"},
		{"tariffs need the word", "tariffs", "La tasa es 16%", ""},
		{"amounts", "amounts", "El límite es USD 200 mensuales", "Montos: USD 200"},
		{"amounts shows first three", "amounts", "1 2 3 4", "Montos: 1, 2, 3"},
		{"too many amounts", "amounts", "1 2 3 4 5 6", ""},
		{"no amounts", "amounts", "sin números", ""},
		{"unknown extractor", "weather", "16%", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractFact(tt.kind, tt.content))
		})
	}
}

// ==========================
// Prompt Formatting Tests
// ==========================

func TestFormatForPrompt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	result := process(&Response{
		Answer: "El arancel vigente es 16%.",
		Hits: []Hit{{
			Title:   "Decreto 557/2023",
			URL:     "https://www.afip.gob.ar/aranceles",
			Content: "El arancel es 16% y el tope USD 3000.",
		}},
	}, testProfiles()["comex"], now)

	out := FormatForPrompt(result)

	assert.Contains(t, out, "📊 INFORMACIÓN ACTUALIZADA DE BÚSQUEDA WEB:\n⚠️ IMPORTANTE: Usa estos valores EXACTAMENTE como aparecen:\n")
	assert.Contains(t, out, "✓ PORCENTAJES ENCONTRADOS: 16%")
	assert.Contains(t, out, "✓ MONTOS USD ENCONTRADOS: 3000")
	assert.Contains(t, out, "RESUMEN: El arancel vigente es 16%.\n")
	assert.Contains(t, out, "DATOS CLAVE:\n• Aranceles: 16%\n")
	assert.Contains(t, out, "FUENTES VERIFICADAS:\n\n1. Decreto 557/2023\n   URL: https://www.afip.gob.ar/aranceles")
	assert.Contains(t, out, "   Contenido: El arancel es **16%** y el tope USD 3000....")
	assert.Contains(t, out, "\nActualizado: 2025-03-10T12:00:00Z\n=== FIN INFORMACIÓN DE BÚSQUEDA ===")
}

func TestFormatForPrompt_Unusable(t *testing.T) {
	assert.Empty(t, FormatForPrompt(nil))
	assert.Empty(t, FormatForPrompt(&models.SearchResult{Error: "boom", Sources: []models.Source{{Title: "x"}}}))
	assert.Empty(t, FormatForPrompt(&models.SearchResult{Summary: "sin fuentes"}))
}

func TestFormatForPrompt_OnlyThreeSources(t *testing.T) {
	result := &models.SearchResult{}
	for _, title := range []string{"uno", "dos", "tres", "cuatro"} {
		result.Sources = append(result.Sources, models.Source{Title: title, URL: "https://x", Content: "c"})
	}

	out := FormatForPrompt(result)

	assert.Contains(t, out, "3. tres")
	assert.NotContains(t, out, "cuatro")
	assert.NotContains(t, out, "PORCENTAJES")
}
