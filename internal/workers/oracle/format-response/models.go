package formatresponse

// Input carries the audit result as loosely typed JSON so the confidence
// breakdown may arrive either as achieved/possible pairs or as boolean
// factors.
type Input struct {
	AuditResult map[string]interface{} `json:"auditResult"`
}

type Output struct {
	ResponseMarkdown string `json:"responseMarkdown"`
}

const inputSchema = `{
	"type": "object",
	"required": ["auditResult"],
	"properties": {
		"auditResult": {
			"type": "object",
			"required": ["status", "finalResponse"],
			"properties": {
				"status": {"type": "string"},
				"finalResponse": {"type": "object"},
				"metadata": {"type": "object"}
			}
		}
	}
}`
