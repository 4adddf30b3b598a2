package auditresponse

import "bureaucracy-oracle/internal/models"

// Input carries either a single answer (Agent + Answer) or the full map of
// answers with a primary agent.
type Input struct {
	Question     string                              `json:"question"`
	Agent        string                              `json:"agent,omitempty"`
	Answer       *models.SpecialistAnswer            `json:"specialistAnswer,omitempty"`
	PrimaryAgent string                              `json:"primaryAgent,omitempty"`
	Answers      map[string]*models.SpecialistAnswer `json:"answers,omitempty"`
}

type Output struct {
	AuditResult *models.AuditResult `json:"auditResult"`
	AuditCost   float64             `json:"auditCost"`
}

const inputSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"agent": {"type": "string"},
		"primaryAgent": {"type": "string"},
		"specialistAnswer": {"type": "object"},
		"answers": {"type": "object"}
	}
}`

// finalResponseSchema is what a usable audited answer must look like.
const finalResponseSchema = `{
	"type": "object",
	"required": ["title", "directAnswer", "details", "regulations", "nextAction"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"directAnswer": {"type": "string", "minLength": 1},
		"details": {"type": "array", "minItems": 1, "items": {"type": "string"}},
		"regulations": {"type": "array", "items": {"type": "string"}},
		"nextAction": {"type": "string", "minLength": 1},
		"warnings": {"type": "string"}
	}
}`
