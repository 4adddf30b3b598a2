// Package auditresponse audits specialist answers and merges several of
// them into one final response.
package auditresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "bureaucracy-oracle/internal/common/errors"
	"bureaucracy-oracle/internal/common/metrics"
	"bureaucracy-oracle/internal/common/validation"
	"bureaucracy-oracle/internal/confidence"
	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "audit-response"

	singlePrompt = "auditor"
	multiPrompt  = "auditor_multi"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	// ErrMultiAuditUnsupported means the caller should audit the primary
	// answer alone.
	ErrMultiAuditUnsupported = errors.New("MULTI_AUDIT_UNSUPPORTED")
)

var (
	schema              = validation.MustCompile(TaskType, inputSchema)
	finalResponseChecks = validation.MustCompile("final-response", finalResponseSchema)
)

const fallbackSinglePrompt = `Eres el Auditor y Resumidor Final del Oráculo Burocrático Argentino.
Verifica que la respuesta del agente aborde la consulta y resume el resultado.
Responde con JSON: {"status": "Aprobado|Observado|Rechazado", "motivo_auditoria": "...",
"respuesta_final": {"titulo": "...", "respuesta_directa": "...", "detalles": [],
"normativa_aplicable": [], "proxima_accion": "...", "advertencias": "..."}}`

const fallbackMultiPrompt = fallbackSinglePrompt + `
Recibirás varias respuestas. Etiqueta cada detalle con el agente de origen ([BCRA], [COMEX], [SENASA]).
Ante contradicciones prioriza al agente principal, pero incluye los datos específicos de los demás.`

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// PromptSource returns stored prompt text by name.
type PromptSource interface {
	Get(name string) (string, error)
}

type Handler struct {
	config     *Config
	backend    llm.Backend
	prices     *llm.PriceTable
	prompts    PromptSource
	calculator *confidence.Calculator
	logger     Logger
	errors     *apperrors.ErrorHandler
}

func NewHandler(config *Config, backend llm.Backend, prices *llm.PriceTable, prompts PromptSource, calculator *confidence.Calculator, log Logger) *Handler {
	if prices == nil {
		prices = llm.NewPriceTable(nil, "")
	}
	if calculator == nil {
		calculator = confidence.NewCalculator(nil)
	}
	if config.DefaultConfidence == 0 {
		config.DefaultConfidence = 0.85
	}
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		backend:    backend,
		prices:     prices,
		prompts:    prompts,
		calculator: calculator,
		logger:     l,
		errors:     apperrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.ErrCodeInvalidInput)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.ErrCodeInvalidInput)).Inc()
		h.errors.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if result := schema.Validate(variables); !result.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute audits a single answer or, when a map of answers is given, runs
// the multi-agent merge with a single-audit fallback on the primary.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	var result *models.AuditResult
	switch {
	case len(input.Answers) > 0:
		primary := strings.ToLower(input.PrimaryAgent)
		if _, ok := input.Answers[primary]; !ok {
			return nil, fmt.Errorf("%w: primary agent %q has no answer", ErrInvalidInput, input.PrimaryAgent)
		}
		result = h.Audit(ctx, input.Question, input.Answers, primary)
	case input.Answer != nil && input.Agent != "":
		result = h.AuditSingle(ctx, input.Question, strings.ToLower(input.Agent), input.Answer)
	default:
		return nil, fmt.Errorf("%w: either answers or agent and specialistAnswer are required", ErrInvalidInput)
	}

	return &Output{AuditResult: result, AuditCost: result.Cost}, nil
}

// Audit runs AuditMulti and falls back to AuditSingle on the primary
// answer when multi audit is unavailable.
func (h *Handler) Audit(ctx context.Context, question string, answers map[string]*models.SpecialistAnswer, primary string) *models.AuditResult {
	result, err := h.AuditMulti(ctx, question, answers, primary)
	if errors.Is(err, ErrMultiAuditUnsupported) {
		h.logger.Warn("multi-agent audit not available, using primary agent only", map[string]interface{}{
			"primary": primary,
		})
		return h.AuditSingle(ctx, question, primary, answers[primary])
	}
	return result
}

// AuditSingle audits one specialist answer. It never fails: any backend or
// parsing error yields a Rejected result with zero cost.
func (h *Handler) AuditSingle(ctx context.Context, question, agent string, answer *models.SpecialistAnswer) *models.AuditResult {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("audit").Observe(time.Since(start).Seconds())
	}()

	agents := []string{agent}
	if answer == nil {
		answer = &models.SpecialistAnswer{Domain: agent, Error: "missing answer"}
	}

	user := fmt.Sprintf("Pregunta del usuario: %s\n\nRespuesta del agente %s:\n%s", question, agent, encodeAnswer(answer))
	raw, cost, err := h.complete(ctx, singlePrompt, fallbackSinglePrompt, user)
	if err != nil {
		return h.rejected(agents, agent, err)
	}

	status, reason, final := decodeVerdict(raw)
	count, sources := answer.SearchMetadata.Count, append([]string{}, answer.SearchMetadata.SourcesConsulted...)

	result := &models.AuditResult{
		Status:        status,
		Reason:        reason,
		FinalResponse: final,
		Metadata: models.AuditMetadata{
			ConsultedAgents:  agents,
			PrimaryAgent:     agent,
			SearchCount:      count,
			SourcesConsulted: sources,
		},
		Cost: cost,
	}
	h.attachConfidence(result, answer)
	h.checkFinalResponse(result)
	return result
}

// AuditMulti merges several answers. ErrMultiAuditUnsupported is returned
// when multi audit is disabled or the audit model is not available; every
// other failure is reported as a Rejected result.
func (h *Handler) AuditMulti(ctx context.Context, question string, answers map[string]*models.SpecialistAnswer, primary string) (*models.AuditResult, error) {
	if !h.config.MultiEnabled {
		return nil, ErrMultiAuditUnsupported
	}

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("audit").Observe(time.Since(start).Seconds())
	}()

	agents := orderAgents(answers, primary)

	var b strings.Builder
	fmt.Fprintf(&b, "Pregunta del usuario: %s\n\nAgente principal: %s\n\nRespuestas de los agentes:\n", question, tag(primary))
	for _, agent := range agents {
		fmt.Fprintf(&b, "\n%s\n%s\n", tag(agent), encodeAnswer(answers[agent]))
	}

	raw, cost, err := h.complete(ctx, multiPrompt, fallbackMultiPrompt, b.String())
	if err != nil {
		if llm.KindOf(err) == llm.KindNotFound {
			return nil, ErrMultiAuditUnsupported
		}
		return h.rejected(agents, primary, err), nil
	}

	lead := leadAgent(answers, agents, primary)
	status, reason, final := decodeVerdict(raw)
	if failed(answers[primary]) && status == models.StatusApproved {
		h.logger.Warn("primary agent failed, approval downgraded", map[string]interface{}{
			"primary": primary,
			"lead":    lead,
		})
		status = models.StatusObserved
	}
	final.Details = mergeDetails(final.Details, answers, agents, lead)
	final.Warnings = mergeWarnings(final.Warnings, answers, agents)
	final.Regulations = unionRegulations(final.Regulations, answers, agents)
	count, sources := aggregateSearch(answers, agents)

	result := &models.AuditResult{
		Status:        status,
		Reason:        reason,
		FinalResponse: final,
		Metadata: models.AuditMetadata{
			ConsultedAgents:  agents,
			PrimaryAgent:     primary,
			SearchCount:      count,
			SourcesConsulted: sources,
		},
		Cost: cost,
	}
	h.attachConfidence(result, answers[lead])
	h.checkFinalResponse(result)
	return result, nil
}

// complete runs one audit call and parses its JSON object.
func (h *Handler) complete(ctx context.Context, promptName, fallback, user string) (map[string]interface{}, float64, error) {
	system, err := h.prompts.Get(promptName)
	if err != nil {
		h.logger.Warn("audit prompt missing, using fallback", map[string]interface{}{
			"prompt": promptName,
		})
		system = fallback
	}

	resp, err := h.backend.Complete(ctx, llm.Request{
		Model:       h.config.Model,
		System:      system,
		User:        user,
		Temperature: h.config.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, 0, err
	}

	raw, _, err := llm.ParseJSONObject(resp.Content)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", err, llm.Preview(resp.Content, 200))
	}

	cost := h.prices.Cost(h.config.Model, resp.Usage)
	metrics.LLMCost.WithLabelValues("audit").Add(cost)
	return raw, cost, nil
}

// attachConfidence uses the answer's self-reported confidence, never an
// average across agents.
func (h *Handler) attachConfidence(result *models.AuditResult, answer *models.SpecialistAnswer) {
	score := h.config.DefaultConfidence
	var raw map[string]interface{}
	var factors map[string]bool
	if answer != nil {
		score = answer.Payload.ConfidenceOr(h.config.DefaultConfidence)
		raw = answer.Payload.Breakdown
		factors = answer.Payload.Factors
	}
	breakdown := h.calculator.Resolve(raw, factors, score)
	result.Metadata.Confidence = score
	result.Metadata.ConfidenceBreakdown = &breakdown
}

// checkFinalResponse downgrades an approval whose final response is
// incomplete.
func (h *Handler) checkFinalResponse(result *models.AuditResult) {
	check := finalResponseChecks.Validate(result.FinalResponse)
	if check.Valid {
		return
	}
	h.logger.Warn("final response failed validation", map[string]interface{}{
		"errors": check.GetErrorMessages(),
		"status": string(result.Status),
	})
	if result.Status == models.StatusApproved {
		result.Status = models.StatusObserved
	}
}

func (h *Handler) rejected(agents []string, primary string, err error) *models.AuditResult {
	stdErr := llm.AsStandardError(err, apperrors.NewAuditFailedError)
	h.logger.Error("audit failed", map[string]interface{}{
		"error":     err.Error(),
		"code":      stdErr.Code,
		"retryable": stdErr.Retryable,
		"agents":    agents,
	})
	return &models.AuditResult{
		Status:        models.StatusRejected,
		Reason:        "Error en el proceso de auditoría",
		FinalResponse: systemError(),
		Metadata: models.AuditMetadata{
			ConsultedAgents:  agents,
			PrimaryAgent:     primary,
			SourcesConsulted: []string{},
		},
		Cost: 0,
	}
}

func encodeAnswer(a *models.SpecialistAnswer) string {
	if a == nil {
		return `{"error": "sin respuesta"}`
	}
	data, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
