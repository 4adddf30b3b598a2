package pipeline

import (
	"bureaucracy-oracle/internal/common/logger"
	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/prompts"
	"bureaucracy-oracle/internal/search"
	answerspecialist "bureaucracy-oracle/internal/workers/oracle/answer-specialist"
	auditresponse "bureaucracy-oracle/internal/workers/oracle/audit-response"
	formatresponse "bureaucracy-oracle/internal/workers/oracle/format-response"
	processquestion "bureaucracy-oracle/internal/workers/oracle/process-question"
	routequestion "bureaucracy-oracle/internal/workers/oracle/route-question"
)

// Logger adapters for packages that declare their own Logger interfaces

type routeLoggerAdapter struct {
	logger.Logger
}

func (a *routeLoggerAdapter) With(fields map[string]interface{}) routequestion.Logger {
	return &routeLoggerAdapter{a.Logger.With(fields)}
}

type specialistLoggerAdapter struct {
	logger.Logger
}

func (a *specialistLoggerAdapter) With(fields map[string]interface{}) answerspecialist.Logger {
	return &specialistLoggerAdapter{a.Logger.With(fields)}
}

type auditLoggerAdapter struct {
	logger.Logger
}

func (a *auditLoggerAdapter) With(fields map[string]interface{}) auditresponse.Logger {
	return &auditLoggerAdapter{a.Logger.With(fields)}
}

type formatLoggerAdapter struct {
	logger.Logger
}

func (a *formatLoggerAdapter) With(fields map[string]interface{}) formatresponse.Logger {
	return &formatLoggerAdapter{a.Logger.With(fields)}
}

type processLoggerAdapter struct {
	logger.Logger
}

func (a *processLoggerAdapter) With(fields map[string]interface{}) processquestion.Logger {
	return &processLoggerAdapter{a.Logger.With(fields)}
}

type llmLoggerAdapter struct {
	logger.Logger
}

func (a *llmLoggerAdapter) With(fields map[string]interface{}) llm.Logger {
	return &llmLoggerAdapter{a.Logger.With(fields)}
}

type searchLoggerAdapter struct {
	logger.Logger
}

func (a *searchLoggerAdapter) With(fields map[string]interface{}) search.Logger {
	return &searchLoggerAdapter{a.Logger.With(fields)}
}

type promptsLoggerAdapter struct {
	logger.Logger
}

func (a *promptsLoggerAdapter) With(fields map[string]interface{}) prompts.Logger {
	return &promptsLoggerAdapter{a.Logger.With(fields)}
}
