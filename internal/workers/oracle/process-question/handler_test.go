package processquestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bureaucracy-oracle/internal/models"
	auditresponse "bureaucracy-oracle/internal/workers/oracle/audit-response"

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

type fakeRouter struct {
	decision *models.RouteDecision
	cost     float64
}

func (f *fakeRouter) Route(ctx context.Context, question string) (*models.RouteDecision, float64) {
	return f.decision, f.cost
}

type specialistBehavior struct {
	delay  time.Duration
	fail   bool
	panics bool
	// ignoreCtx keeps sleeping past cancellation.
	ignoreCtx bool
}

type fakeSpecialist struct {
	mu        sync.Mutex
	behaviors map[string]specialistBehavior
	calls     []string
}

func (f *fakeSpecialist) Answer(ctx context.Context, agent, question string) *models.SpecialistAnswer {
	f.mu.Lock()
	f.calls = append(f.calls, agent)
	b := f.behaviors[agent]
	f.mu.Unlock()

	if b.delay > 0 {
		if b.ignoreCtx {
			time.Sleep(b.delay)
		} else {
			select {
			case <-time.After(b.delay):
			case <-ctx.Done():
				return &models.SpecialistAnswer{Domain: agent, Error: ctx.Err().Error()}
			}
		}
	}
	if b.panics {
		panic("connection reset")
	}
	if b.fail {
		return &models.SpecialistAnswer{
			Domain:  agent,
			Payload: models.StructuredPayload{Error: "API error: 500"},
			Error:   "HTTP 500",
		}
	}
	conf := 0.8
	return &models.SpecialistAnswer{
		Domain:  agent,
		Payload: models.StructuredPayload{Answer: "respuesta de " + agent, Confidence: &conf},
		SearchMetadata: models.SearchMetadata{
			Used:             true,
			Count:            1,
			SourcesConsulted: []string{agent + ".gob.ar"},
		},
		Cost: 0.01,
	}
}

type fakeAuditor struct {
	mu          sync.Mutex
	multiErr    error
	multiInput  map[string]*models.SpecialistAnswer
	singleAgent string
}

func (f *fakeAuditor) AuditMulti(ctx context.Context, question string, answers map[string]*models.SpecialistAnswer, primary string) (*models.AuditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multiInput = answers
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	agents := make([]string, 0, len(answers))
	for a := range answers {
		agents = append(agents, a)
	}
	return &models.AuditResult{
		Status:        models.StatusApproved,
		FinalResponse: models.FinalResponse{Title: "multi"},
		Metadata:      models.AuditMetadata{ConsultedAgents: agents, PrimaryAgent: primary, Confidence: 0.9},
		Cost:          0.02,
	}, nil
}

func (f *fakeAuditor) AuditSingle(ctx context.Context, question, agent string, answer *models.SpecialistAnswer) *models.AuditResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleAgent = agent
	return &models.AuditResult{
		Status:        models.StatusObserved,
		FinalResponse: models.FinalResponse{Title: "single"},
		Metadata:      models.AuditMetadata{ConsultedAgents: []string{agent}, PrimaryAgent: agent, Confidence: 0.8},
		Cost:          0.005,
	}
}

type recorded struct {
	outcome string
	cost    float64
}

type fakeRecorder struct {
	got []recorded
}

func (f *fakeRecorder) RecordQuestion(ctx context.Context, outcome string, cost float64, d time.Duration) {
	f.got = append(f.got, recorded{outcome: outcome, cost: cost})
}

type fakeFormatter struct{}

func (fakeFormatter) Format(r *models.AuditResult) string {
	return "# " + r.FinalResponse.Title
}

func decision(primary string, agents ...string) *models.RouteDecision {
	return &models.RouteDecision{Agents: agents, PrimaryAgent: primary, Reason: "test", Confidence: 0.9}
}

func newTestHandler(t *testing.T, router Router, specialist Specialist, auditor Auditor) *Handler {
	return NewHandler(LoadConfig(), router, specialist, auditor, fakeFormatter{}, nil, &TestLogger{t: t})
}

func steps(out *Output) []string {
	names := make([]string, 0, len(out.FlowTrace))
	for _, s := range out.FlowTrace {
		names = append(names, s.Step)
	}
	return names
}

// ==========================
// Process Tests
// ==========================

func TestProcess_MultiAgent(t *testing.T) {
	auditor := &fakeAuditor{}
	specialist := &fakeSpecialist{}
	h := newTestHandler(t, &fakeRouter{decision: decision("senasa", "senasa", "comex"), cost: 0.001}, specialist, auditor)

	out := h.Process(context.Background(), "¿Cómo exportar carne vacuna a China?")

	require.True(t, out.Success)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "# multi", out.Response)
	assert.Empty(t, out.Message)
	assert.Empty(t, out.ErrorCode)
	assert.InDelta(t, 0.001+0.01+0.01+0.02, out.Cost, 1e-9)
	assert.ElementsMatch(t, []string{"senasa", "comex"}, specialist.calls)
	assert.Len(t, auditor.multiInput, 2)
	assert.Equal(t, []string{"routing", "agent_senasa", "agent_comex", "audit"}, steps(out))
	assert.Equal(t, "senasa", out.FlowTrace[1].Agent)
	assert.InDelta(t, 0.01, out.FlowTrace[1].Cost, 1e-9)
	assert.GreaterOrEqual(t, out.DurationMs, int64(0))
}

func TestProcess_OutOfScope(t *testing.T) {
	specialist := &fakeSpecialist{}
	h := newTestHandler(t, &fakeRouter{decision: models.OutOfScopeDecision("receta de cocina"), cost: 0.0004}, specialist, &fakeAuditor{})

	out := h.Process(context.Background(), "¿Cómo hago una torta?")

	assert.False(t, out.Success)
	assert.Equal(t, outOfScopeMessage, out.Message)
	assert.Equal(t, "OUT_OF_SCOPE", out.ErrorCode)
	assert.Empty(t, out.Response)
	assert.InDelta(t, 0.0004, out.Cost, 1e-9)
	assert.Equal(t, []string{"routing"}, steps(out))
	assert.Empty(t, specialist.calls)
	assert.Nil(t, out.Audit)
}

func TestProcess_NilDecisionIsOutOfScope(t *testing.T) {
	h := newTestHandler(t, &fakeRouter{}, &fakeSpecialist{}, &fakeAuditor{})

	out := h.Process(context.Background(), "hola")

	assert.False(t, out.Success)
	require.NotNil(t, out.Decision)
	assert.Equal(t, models.OutOfScope, out.Decision.PrimaryAgent)
}

func TestProcess_FanOutIsConcurrentAndIndependent(t *testing.T) {
	delay := 200 * time.Millisecond
	specialist := &fakeSpecialist{behaviors: map[string]specialistBehavior{
		"bcra":   {delay: delay},
		"comex":  {delay: delay, fail: true},
		"senasa": {delay: delay},
	}}
	auditor := &fakeAuditor{}
	h := newTestHandler(t, &fakeRouter{decision: decision("bcra", "bcra", "comex", "senasa")}, specialist, auditor)

	start := time.Now()
	out := h.Process(context.Background(), "consulta")
	elapsed := time.Since(start)

	require.True(t, out.Success)
	assert.Less(t, elapsed, 2*delay, "specialists should overlap in time")

	require.Len(t, auditor.multiInput, 3)
	assert.False(t, auditor.multiInput["bcra"].Failed())
	assert.False(t, auditor.multiInput["senasa"].Failed())
	assert.True(t, auditor.multiInput["comex"].Failed())
	assert.Equal(t, "HTTP 500", out.Answers["comex"].Error)
	assert.InDelta(t, 0.01+0.01+0.02, out.Cost, 1e-9)
}

func TestProcess_SpecialistPanicBecomesErrorEntry(t *testing.T) {
	specialist := &fakeSpecialist{behaviors: map[string]specialistBehavior{
		"comex": {panics: true},
	}}
	auditor := &fakeAuditor{}
	h := newTestHandler(t, &fakeRouter{decision: decision("senasa", "senasa", "comex")}, specialist, auditor)

	out := h.Process(context.Background(), "consulta")

	require.True(t, out.Success)
	comex := out.Answers["comex"]
	require.NotNil(t, comex)
	assert.Equal(t, "Failed to contact comex", comex.Payload.Error)
	assert.Contains(t, comex.Error, "connection reset")
	assert.Equal(t, []string{}, comex.SearchMetadata.SourcesConsulted)
	assert.False(t, out.Answers["senasa"].Failed())
}

func TestProcess_SlowSpecialistTimesOutAlone(t *testing.T) {
	specialist := &fakeSpecialist{behaviors: map[string]specialistBehavior{
		"bcra": {delay: 500 * time.Millisecond, ignoreCtx: true},
	}}
	h := newTestHandler(t, &fakeRouter{decision: decision("comex", "comex", "bcra")}, specialist, &fakeAuditor{})
	h.config.SpecialistTimeout = 50 * time.Millisecond

	start := time.Now()
	out := h.Process(context.Background(), "consulta")

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	require.True(t, out.Success)
	assert.Equal(t, "Failed to contact bcra", out.Answers["bcra"].Payload.Error)
	assert.Equal(t, context.DeadlineExceeded.Error(), out.Answers["bcra"].Error)
	assert.False(t, out.Answers["comex"].Failed())
}

func TestProcess_AuditFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "multi audit unsupported", err: auditresponse.ErrMultiAuditUnsupported},
		{name: "wrapped unsupported", err: fmt.Errorf("audit: %w", auditresponse.ErrMultiAuditUnsupported)},
		{name: "unexpected error", err: fmt.Errorf("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &fakeAuditor{multiErr: tt.err}
			h := newTestHandler(t, &fakeRouter{decision: decision("senasa", "senasa", "comex")}, &fakeSpecialist{}, auditor)

			out := h.Process(context.Background(), "consulta")

			require.True(t, out.Success)
			assert.Equal(t, "senasa", auditor.singleAgent)
			assert.Equal(t, "# single", out.Response)
			assert.Equal(t, "audit_single", out.FlowTrace[len(out.FlowTrace)-1].Step)
			assert.InDelta(t, 0.01+0.01+0.005, out.Cost, 1e-9)
		})
	}
}

func TestProcess_RecordsQuestionOutcome(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newTestHandler(t, &fakeRouter{decision: decision("bcra", "bcra"), cost: 0.001}, &fakeSpecialist{}, &fakeAuditor{})
	h.SetRecorder(recorder)

	h.Process(context.Background(), "¿Cuál es el límite de compra de dólares?")
	h.router = &fakeRouter{decision: models.OutOfScopeDecision("deportes"), cost: 0.0004}
	h.Process(context.Background(), "¿Quién ganó el partido?")

	require.Len(t, recorder.got, 2)
	assert.Equal(t, "answered", recorder.got[0].outcome)
	assert.InDelta(t, 0.001+0.01+0.02, recorder.got[0].cost, 1e-9)
	assert.Equal(t, recorded{outcome: "out_of_scope", cost: 0.0004}, recorder.got[1])
}

// ==========================
// Execute Tests
// ==========================

func TestExecute(t *testing.T) {
	h := newTestHandler(t, &fakeRouter{decision: decision("bcra", "bcra")}, &fakeSpecialist{}, &fakeAuditor{})

	out, err := h.Execute(context.Background(), &Input{Question: "  ¿Cuál es el límite de compra de dólares?  "})
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = h.Execute(context.Background(), &Input{Question: strings.Repeat(" ", 3)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
