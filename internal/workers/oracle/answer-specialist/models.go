package answerspecialist

import "bureaucracy-oracle/internal/models"

type Input struct {
	Agent    string `json:"agent"`
	Question string `json:"question"`
}

type Output struct {
	Agent            string                   `json:"agent"`
	SpecialistAnswer *models.SpecialistAnswer `json:"specialistAnswer"`
	SpecialistCost   float64                  `json:"specialistCost"`
}

const inputSchema = `{
	"type": "object",
	"required": ["agent", "question"],
	"properties": {
		"agent": {"type": "string", "minLength": 1},
		"question": {"type": "string", "minLength": 1}
	}
}`
