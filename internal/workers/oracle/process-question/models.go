package processquestion

import "bureaucracy-oracle/internal/models"

type Input struct {
	Question string `json:"question"`
}

// Output is the outcome of one question. Success is false only when the
// question is out of scope; degraded stages still produce a response.
type Output struct {
	Success    bool                                `json:"success"`
	RequestID  string                              `json:"requestId"`
	Response   string                              `json:"response,omitempty"`
	Message    string                              `json:"message,omitempty"`
	ErrorCode  string                              `json:"errorCode,omitempty"`
	Cost       float64                             `json:"cost"`
	Decision   *models.RouteDecision               `json:"decision"`
	Answers    map[string]*models.SpecialistAnswer `json:"answers,omitempty"`
	Audit      *models.AuditResult                 `json:"audit,omitempty"`
	FlowTrace  []models.TraceStep                  `json:"flowTrace"`
	DurationMs int64                               `json:"durationMs"`
}

const inputSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {
			"type": "string",
			"minLength": 1,
			"maxLength": 2000
		}
	}
}`
