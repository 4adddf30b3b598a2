// Package processquestion drives one question through routing, the
// specialist fan-out, the audit and the markdown rendering.
package processquestion

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
	"bureaucracy-oracle/internal/models"
	auditresponse "bureaucracy-oracle/internal/workers/oracle/audit-response"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const TaskType = "process-question"

const outOfScopeMessage = "Tu consulta está fuera del alcance del Oráculo Burocrático. " +
	"Puedo ayudarte con normativa del BCRA, comercio exterior (COMEX) y SENASA."

var ErrInvalidInput = errors.New("INVALID_INPUT")

var schema = validation.MustCompile(TaskType, inputSchema)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Router interface {
	Route(ctx context.Context, question string) (*models.RouteDecision, float64)
}

// Specialist answers for one domain. Implementations report failures inside
// the returned answer.
type Specialist interface {
	Answer(ctx context.Context, agent, question string) *models.SpecialistAnswer
}

type Auditor interface {
	AuditMulti(ctx context.Context, question string, answers map[string]*models.SpecialistAnswer, primary string) (*models.AuditResult, error)
	AuditSingle(ctx context.Context, question, agent string, answer *models.SpecialistAnswer) *models.AuditResult
}

type Formatter interface {
	Format(r *models.AuditResult) string
}

// Recorder receives one observation per processed question.
type Recorder interface {
	RecordQuestion(ctx context.Context, outcome string, cost float64, d time.Duration)
}

type Handler struct {
	config     *Config
	router     Router
	specialist Specialist
	auditor    Auditor
	formatter  Formatter
	tracer     trace.Tracer
	recorder   Recorder
	logger     Logger
	errors     *apperrors.ErrorHandler
}

// NewHandler wires the pipeline stages. A nil tracer uses the global
// OpenTelemetry provider.
func NewHandler(config *Config, router Router, specialist Specialist, auditor Auditor, formatter Formatter, tracer trace.Tracer, log Logger) *Handler {
	if tracer == nil {
		tracer = otel.Tracer(TaskType)
	}
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		router:     router,
		specialist: specialist,
		auditor:    auditor,
		formatter:  formatter,
		tracer:     tracer,
		logger:     l,
		errors:     apperrors.NewErrorHandler(l),
	}
}

// SetRecorder attaches a per-question metrics sink.
func (h *Handler) SetRecorder(r Recorder) {
	h.recorder = r
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	return h.Process(ctx, question), nil
}

// Process runs the whole pipeline. It never fails: backend problems in any
// stage surface as degraded content in the output.
func (h *Handler) Process(ctx context.Context, question string) *Output {
	start := time.Now()
	out := &Output{
		RequestID: uuid.NewString(),
		FlowTrace: []models.TraceStep{},
	}
	log := h.logger.With(map[string]interface{}{"requestId": out.RequestID})

	ctx, span := h.tracer.Start(ctx, "oracle.process", trace.WithAttributes(
		attribute.String("oracle.request_id", out.RequestID),
	))
	defer span.End()
	defer func() {
		elapsed := time.Since(start)
		out.DurationMs = elapsed.Milliseconds()
		metrics.StageDuration.WithLabelValues("pipeline").Observe(elapsed.Seconds())
		if h.recorder != nil {
			outcome := "answered"
			if !out.Success {
				outcome = "out_of_scope"
			}
			h.recorder.RecordQuestion(ctx, outcome, out.Cost, elapsed)
		}
	}()

	decision, routeCost := h.route(ctx, question, out)
	out.Decision = decision
	out.Cost += routeCost

	if decision.IsOutOfScope() {
		stdErr := apperrors.NewOutOfScopeError(decision.Reason)
		out.Message = outOfScopeMessage
		out.ErrorCode = apperrors.BPMNErrorMapping[stdErr.Code]
		log.Info("question out of scope", map[string]interface{}{
			"reason": stdErr.Details,
			"code":   stdErr.Code,
		})
		span.SetAttributes(attribute.Bool("oracle.out_of_scope", true))
		return out
	}

	log.Info("calling specialists", map[string]interface{}{
		"agents":  decision.Agents,
		"primary": decision.PrimaryAgent,
	})
	out.Answers = h.fanOut(ctx, question, decision.Agents, out)
	for _, agent := range decision.Agents {
		out.Cost += out.Answers[agent].Cost
	}

	out.Audit = h.audit(ctx, question, out.Answers, decision.PrimaryAgent, out)
	out.Cost += out.Audit.Cost

	_, fspan := h.tracer.Start(ctx, "oracle.format")
	out.Response = h.formatter.Format(out.Audit)
	fspan.End()

	out.Success = true
	span.SetAttributes(
		attribute.Int("oracle.agents", len(decision.Agents)),
		attribute.String("oracle.audit_status", string(out.Audit.Status)),
		attribute.Float64("oracle.cost", out.Cost),
	)
	log.Info("question processed", map[string]interface{}{
		"status": out.Audit.Status,
		"cost":   out.Cost,
	})
	return out
}

func (h *Handler) route(ctx context.Context, question string, out *Output) (*models.RouteDecision, float64) {
	ctx, span := h.tracer.Start(ctx, "oracle.route")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.config.RouteTimeout)
	defer cancel()

	start := time.Now()
	decision, cost := h.router.Route(ctx, question)
	if decision == nil {
		decision, cost = models.OutOfScopeDecision("Error: empty routing decision"), 0
	}
	out.FlowTrace = append(out.FlowTrace, models.TraceStep{
		Step:       "routing",
		DurationMs: time.Since(start).Milliseconds(),
		Cost:       cost,
		Result:     decision,
	})
	span.SetAttributes(attribute.StringSlice("oracle.agents", decision.Agents))
	return decision, cost
}

// fanOut calls every agent concurrently and waits for all of them. A
// failing, panicking or slow specialist yields an error-tagged answer for
// its own domain only.
func (h *Handler) fanOut(ctx context.Context, question string, agents []string, out *Output) map[string]*models.SpecialistAnswer {
	ctx, span := h.tracer.Start(ctx, "oracle.specialists")
	defer span.End()

	answers := make([]*models.SpecialistAnswer, len(agents))
	durations := make([]time.Duration, len(agents))

	var g errgroup.Group
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			start := time.Now()
			answers[i] = h.callSpecialist(ctx, agent, question)
			durations[i] = time.Since(start)
			return nil
		})
	}
	g.Wait()

	byAgent := make(map[string]*models.SpecialistAnswer, len(agents))
	for i, agent := range agents {
		byAgent[agent] = answers[i]
		out.FlowTrace = append(out.FlowTrace, models.TraceStep{
			Step:       "agent_" + agent,
			Agent:      agent,
			DurationMs: durations[i].Milliseconds(),
			Cost:       answers[i].Cost,
			Result:     answers[i],
		})
	}
	return byAgent
}

func (h *Handler) callSpecialist(ctx context.Context, agent, question string) *models.SpecialistAnswer {
	ctx, span := h.tracer.Start(ctx, "oracle.specialist", trace.WithAttributes(
		attribute.String("oracle.agent", agent),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.config.SpecialistTimeout)
	defer cancel()

	// Buffered so a late answer never blocks the abandoned goroutine.
	done := make(chan *models.SpecialistAnswer, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("specialist panicked", map[string]interface{}{
					"agent": agent,
					"panic": fmt.Sprint(r),
				})
				done <- contactFailure(agent, fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- h.specialist.Answer(ctx, agent, question)
	}()

	var answer *models.SpecialistAnswer
	select {
	case answer = <-done:
	case <-ctx.Done():
		h.logger.Warn("specialist timed out", map[string]interface{}{
			"agent": agent,
			"error": ctx.Err().Error(),
		})
		answer = contactFailure(agent, ctx.Err().Error())
	}

	if answer == nil {
		answer = contactFailure(agent, "empty answer")
	}
	if answer.Failed() {
		span.SetAttributes(attribute.String("oracle.error", answer.Error))
	}
	return answer
}

func contactFailure(agent, cause string) *models.SpecialistAnswer {
	metrics.SpecialistFailures.WithLabelValues(agent).Inc()
	return &models.SpecialistAnswer{
		Domain:  agent,
		Payload: models.StructuredPayload{Error: "Failed to contact " + agent},
		SearchMetadata: models.SearchMetadata{
			SourcesConsulted: []string{},
		},
		Error: cause,
	}
}

// audit prefers the multi-agent merge and audits the primary answer alone
// when that path is unavailable.
func (h *Handler) audit(ctx context.Context, question string, answers map[string]*models.SpecialistAnswer, primary string, out *Output) *models.AuditResult {
	ctx, span := h.tracer.Start(ctx, "oracle.audit")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.config.AuditTimeout)
	defer cancel()

	start := time.Now()
	step := "audit"
	result, err := h.auditor.AuditMulti(ctx, question, answers, primary)
	if err != nil {
		if !errors.Is(err, auditresponse.ErrMultiAuditUnsupported) {
			h.logger.Warn("multi-agent audit failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			h.logger.Warn("multi-agent audit not available, using primary agent only", map[string]interface{}{
				"primary": primary,
			})
		}
		step = "audit_single"
		result = h.auditor.AuditSingle(ctx, question, primary, answers[primary])
	}

	out.FlowTrace = append(out.FlowTrace, models.TraceStep{
		Step:       step,
		Agent:      primary,
		DurationMs: time.Since(start).Milliseconds(),
		Cost:       result.Cost,
		Result:     result,
	})
	span.SetAttributes(attribute.String("oracle.audit_path", step))
	return result
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
