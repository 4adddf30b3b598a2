// Package formatresponse renders audited answers as markdown.
package formatresponse

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
	"bureaucracy-oracle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "format-response"

var ErrInvalidInput = errors.New("INVALID_INPUT")

var schema = validation.MustCompile(TaskType, inputSchema)

var (
	breakdownKeys = []string{"confidenceBreakdown", "confidence_breakdown"}
	factorKeys    = []string{"confidenceFactors", "confidence_factors"}
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config     *Config
	calculator *confidence.Calculator
	logger     Logger
	errors     *apperrors.ErrorHandler
}

func NewHandler(config *Config, calculator *confidence.Calculator, log Logger) *Handler {
	if calculator == nil {
		calculator = confidence.NewCalculator(nil)
	}
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.decodeResult(input.AuditResult)
	if err != nil {
		return nil, err
	}
	return &Output{ResponseMarkdown: Render(result, h.config.NearPerfectThreshold)}, nil
}

// Format renders an already typed audit result. A missing breakdown is
// derived from the scalar confidence.
func (h *Handler) Format(r *models.AuditResult) string {
	if r.Metadata.ConfidenceBreakdown == nil {
		bd := h.calculator.Resolve(nil, nil, r.Metadata.Confidence)
		r.Metadata.ConfidenceBreakdown = &bd
	}
	return Render(r, h.config.NearPerfectThreshold)
}

// decodeResult reads an audit result whose breakdown may be pair-shaped,
// boolean-shaped or absent, and resolves it into the typed breakdown.
func (h *Handler) decodeResult(raw map[string]interface{}) (*models.AuditResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: auditResult is empty", ErrInvalidInput)
	}

	doc := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		doc[k] = v
	}

	var rawBreakdown map[string]interface{}
	var factors map[string]bool
	hasScore := false

	if meta, ok := raw["metadata"].(map[string]interface{}); ok {
		m := make(map[string]interface{}, len(meta))
		for k, v := range meta {
			m[k] = v
		}
		rawBreakdown = takeObject(m, breakdownKeys)
		factors = toFactors(takeObject(m, factorKeys))
		_, hasScore = m["confidence"]
		doc["metadata"] = m
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var result models.AuditResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !hasScore {
		result.Metadata.Confidence = confidence.DefaultConfidence
	}
	bd := h.calculator.Resolve(rawBreakdown, factors, result.Metadata.Confidence)
	result.Metadata.ConfidenceBreakdown = &bd
	return &result, nil
}

func takeObject(m map[string]interface{}, keys []string) map[string]interface{} {
	var found map[string]interface{}
	for _, k := range keys {
		if obj, ok := m[k].(map[string]interface{}); ok && found == nil {
			found = obj
		}
		delete(m, k)
	}
	return found
}

func toFactors(m map[string]interface{}) map[string]bool {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
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
