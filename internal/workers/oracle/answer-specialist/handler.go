// Package answerspecialist answers a question for one regulatory domain,
// optionally grounding the completion in web search results.
package answerspecialist

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
	"bureaucracy-oracle/internal/search"
	"bureaucracy-oracle/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "answer-specialist"

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrUnknownAgent = errors.New("UNKNOWN_AGENT")
)

var schema = validation.MustCompile(TaskType, inputSchema)

const (
	errNotJSON       = "Response was not valid JSON"
	errInternal      = "Internal error"
	rawPreviewLength = 500
)

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

// Searcher is the part of search.Provider a specialist needs.
type Searcher interface {
	NeedsSearch(question, domain string) search.Depth
	Search(ctx context.Context, question, domain string, depth search.Depth) *search.Outcome
}

type Handler struct {
	config   *Config
	backend  llm.Backend
	prices   *llm.PriceTable
	prompts  PromptSource
	registry *registry.Registry
	searcher Searcher
	logger   Logger
	errors   *apperrors.ErrorHandler
}

// NewHandler builds the specialist worker. searcher may be nil, in which
// case answers are never augmented.
func NewHandler(config *Config, backend llm.Backend, prices *llm.PriceTable, prompts PromptSource, reg *registry.Registry, searcher Searcher, log Logger) *Handler {
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
		searcher: searcher,
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
		var stdErr error = apperrors.NewInvalidInputError(err.Error())
		code := apperrors.ErrCodeInvalidInput
		if errors.Is(err, ErrUnknownAgent) {
			stdErr = apperrors.NewUnknownAgentError(input.Agent)
			code = apperrors.ErrCodeUnknownAgent
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
		h.errors.HandleJobError(ctx, client, job, stdErr)
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

// Execute answers for input.Agent. Only an empty question or an agent
// missing from the registry is an error; everything else is reported
// inside the answer.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if _, ok := h.registry.Lookup(input.Agent); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, input.Agent)
	}

	answer := h.Answer(ctx, input.Agent, input.Question)
	return &Output{
		Agent:            answer.Domain,
		SpecialistAnswer: answer,
		SpecialistCost:   answer.Cost,
	}, nil
}

// Answer never fails: backend errors become an error-tagged answer with
// zero cost, and unparseable output becomes a payload carrying the parse
// error and a preview of the raw text.
func (h *Handler) Answer(ctx context.Context, agent, question string) *models.SpecialistAnswer {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("specialist").Observe(time.Since(start).Seconds())
	}()

	log := h.logger.With(map[string]interface{}{"agent": agent})

	domain, ok := h.registry.Lookup(agent)
	if !ok {
		return h.failed(agent, fmt.Sprintf("Unknown agent: %s", agent), models.SearchMetadata{SourcesConsulted: []string{}})
	}

	system, err := h.prompts.Get(domain.Prompt)
	if err != nil {
		log.Error("specialist prompt missing", map[string]interface{}{
			"prompt": domain.Prompt,
			"error":  err.Error(),
		})
		return h.failed(domain.Slug, errInternal, models.SearchMetadata{SourcesConsulted: []string{}})
	}

	outcome := h.lookup(ctx, question, domain.Slug)
	user := question
	if outcome != nil {
		if block := search.FormatForPrompt(outcome.Result); block != "" {
			user = question + "\n\n" + block
		}
	}
	searchMeta := outcome.Metadata()

	temperature := domain.Temperature
	if temperature == 0 {
		temperature = h.config.Temperature
	}

	resp, err := h.backend.Complete(ctx, llm.Request{
		Model:       h.config.Model,
		System:      system,
		User:        user,
		Temperature: temperature,
		JSONMode:    true,
	})
	if err != nil {
		stdErr := llm.AsStandardError(err, func(cause error) *apperrors.StandardError {
			return apperrors.NewSpecialistFailedError(domain.Slug, cause)
		})
		log.Error("specialist call failed", map[string]interface{}{
			"error":     err.Error(),
			"code":      stdErr.Code,
			"retryable": stdErr.Retryable,
		})
		msg := errInternal
		if status := llm.StatusOf(err); status > 0 {
			msg = fmt.Sprintf("API error: %d", status)
		}
		answer := h.failed(domain.Slug, msg, searchMeta)
		answer.Error = err.Error()
		return answer
	}

	cost := h.prices.Cost(h.config.Model, resp.Usage)
	metrics.LLMCost.WithLabelValues("specialist").Add(cost)
	if outcome != nil {
		cost += outcome.Cost
	}

	raw, stage, err := llm.ParseJSONObject(resp.Content)
	var payload models.StructuredPayload
	if err != nil {
		log.Warn("specialist output was not JSON", map[string]interface{}{
			"preview": llm.Preview(resp.Content, 200),
		})
		payload = models.StructuredPayload{
			Error:      errNotJSON,
			RawPreview: llm.Preview(resp.Content, rawPreviewLength),
		}
	} else {
		payload = models.DecodePayload(raw)
	}

	log.Info("specialist answered", map[string]interface{}{
		"parseStage":  stage.String(),
		"searchUsed":  searchMeta.Used,
		"searchDepth": depthOf(outcome),
		"cost":        cost,
	})

	return &models.SpecialistAnswer{
		Domain:         domain.Slug,
		Payload:        payload,
		SearchMetadata: searchMeta,
		Cost:           cost,
	}
}

func (h *Handler) lookup(ctx context.Context, question, domain string) *search.Outcome {
	if h.searcher == nil {
		return nil
	}
	depth := h.searcher.NeedsSearch(question, domain)
	if depth == search.DepthNone {
		return nil
	}
	return h.searcher.Search(ctx, question, domain, depth)
}

func (h *Handler) failed(domain, msg string, meta models.SearchMetadata) *models.SpecialistAnswer {
	metrics.SpecialistFailures.WithLabelValues(domain).Inc()
	return &models.SpecialistAnswer{
		Domain:         domain,
		Payload:        models.StructuredPayload{Error: msg},
		SearchMetadata: meta,
		Cost:           0,
		Error:          msg,
	}
}

func depthOf(o *search.Outcome) string {
	if o == nil {
		return string(search.DepthNone)
	}
	return string(o.Depth)
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
