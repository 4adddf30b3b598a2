// Package routequestion classifies a question into zero or more specialist
// domains.
package routequestion

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
	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/models"
	"bureaucracy-oracle/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "route-question"

	promptName = "router"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

var schema = validation.MustCompile(TaskType, inputSchema)

const fallbackPrompt = `You are a routing agent for Argentine regulations.
Route the question to ALL relevant agents. Answer with a JSON object:
{"agents": [...], "primary_agent": "...", "reason": "...", "confidence": 0.0-1.0}.
Use "out_of_scope" as primary_agent and an empty list when no agent applies.`

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
	config   *Config
	backend  llm.Backend
	prices   *llm.PriceTable
	prompts  PromptSource
	registry *registry.Registry
	logger   Logger
	errors   *apperrors.ErrorHandler
}

func NewHandler(config *Config, backend llm.Backend, prices *llm.PriceTable, prompts PromptSource, reg *registry.Registry, log Logger) *Handler {
	if prices == nil {
		prices = llm.NewPriceTable(nil, "")
	}
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:   config,
		backend:  backend,
		prices:   prices,
		prompts:  prompts,
		registry: reg,
		logger:   l,
		errors:   apperrors.NewErrorHandler(l),
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

// Execute routes the question. Backend failures are folded into the
// decision, so the error return is reserved for bad input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	decision, cost := h.Route(ctx, input.Question)
	return &Output{
		Decision:        decision,
		AgentsAvailable: h.registry.Slugs(),
		RouteCost:       cost,
	}, nil
}

// Route classifies question. It never fails: any backend or parsing error
// yields an out-of-scope decision carrying the error text and zero cost.
func (h *Handler) Route(ctx context.Context, question string) (*models.RouteDecision, float64) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("route").Observe(time.Since(start).Seconds())
	}()

	resp, err := h.backend.Complete(ctx, llm.Request{
		Model:       h.config.Model,
		System:      h.systemPrompt(),
		User:        "Question: " + question,
		Temperature: h.config.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		stdErr := llm.AsStandardError(err, apperrors.NewRouteFailedError)
		h.logger.Error("routing call failed", map[string]interface{}{
			"error":     err.Error(),
			"code":      stdErr.Code,
			"retryable": stdErr.Retryable,
		})
		metrics.RouteDecisions.WithLabelValues("error").Inc()
		return models.OutOfScopeDecision("Error: " + llm.UserMessage(err)), 0
	}

	raw, stage, err := llm.ParseJSONObject(resp.Content)
	if err != nil {
		h.logger.Error("routing response was not JSON", map[string]interface{}{
			"code":    llm.AsStandardError(err, apperrors.NewRouteFailedError).Code,
			"preview": llm.Preview(resp.Content, 200),
		})
		metrics.RouteDecisions.WithLabelValues("error").Inc()
		return models.OutOfScopeDecision("Error: Respuesta inválida de OpenRouter"), 0
	}

	decision := resolveDecision(raw, h.known, h.logger)
	cost := h.prices.Cost(h.config.Model, resp.Usage)
	metrics.LLMCost.WithLabelValues("route").Add(cost)
	metrics.RouteDecisions.WithLabelValues(outcomeOf(decision)).Inc()

	h.logger.Info("routing completed", map[string]interface{}{
		"agents":     decision.Agents,
		"primary":    decision.PrimaryAgent,
		"confidence": decision.Confidence,
		"parseStage": stage.String(),
		"cost":       cost,
	})
	return decision, cost
}

func (h *Handler) known(slug string) bool {
	_, ok := h.registry.Lookup(slug)
	return ok
}

func (h *Handler) systemPrompt() string {
	base, err := h.prompts.Get(promptName)
	if err != nil {
		h.logger.Warn("router prompt missing, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		base = fallbackPrompt
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nAvailable agents:\n")
	for _, d := range h.registry.Domains {
		fmt.Fprintf(&b, "- %s: %s", d.Slug, d.Name)
		if d.Description != "" {
			b.WriteString(". ")
			b.WriteString(strings.TrimSpace(d.Description))
		}
		b.WriteString("\n")
	}
	if note := biasNote(h.config.Bias, h.registry.Slugs()); note != "" {
		b.WriteString("\n")
		b.WriteString(note)
		b.WriteString("\n")
	}
	return b.String()
}

func outcomeOf(d *models.RouteDecision) string {
	switch {
	case d.IsOutOfScope():
		return "out_of_scope"
	case len(d.Agents) == 1:
		return "single"
	default:
		return "multi"
	}
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
