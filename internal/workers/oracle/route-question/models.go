package routequestion

import "bureaucracy-oracle/internal/models"

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	Decision        *models.RouteDecision `json:"decision"`
	AgentsAvailable []string              `json:"agentsAvailable"`
	RouteCost       float64               `json:"routeCost"`
}

const inputSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1}
	}
}`
