// internal/models/audit.go
package models

import "strings"

// AuditStatus is the auditor's verdict. Values are the Spanish labels the
// audit model emits.
type AuditStatus string

const (
	StatusApproved AuditStatus = "Aprobado"
	StatusObserved AuditStatus = "Observado"
	StatusRejected AuditStatus = "Rechazado"
)

// ParseAuditStatus accepts Spanish or English labels in any case. Unknown
// values are treated as Rejected.
func ParseAuditStatus(s string) AuditStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aprobado", "approved":
		return StatusApproved
	case "observado", "observed":
		return StatusObserved
	default:
		return StatusRejected
	}
}

// FinalResponse is the user-facing body of an audited answer.
type FinalResponse struct {
	Title        string   `json:"title"`
	DirectAnswer string   `json:"directAnswer"`
	Details      []string `json:"details"`
	Regulations  []string `json:"regulations"`
	NextAction   string   `json:"nextAction"`
	Warnings     string   `json:"warnings,omitempty"`
}

// AuditMetadata carries provenance and confidence for the final answer.
type AuditMetadata struct {
	ConsultedAgents     []string             `json:"consultedAgents"`
	PrimaryAgent        string               `json:"primaryAgent"`
	Confidence          float64              `json:"confidence"`
	ConfidenceBreakdown *ConfidenceBreakdown `json:"confidenceBreakdown,omitempty"`
	SearchCount         int                  `json:"searchCount"`
	SourcesConsulted    []string             `json:"sourcesConsulted"`
}

// AuditResult is produced once per question and not modified afterwards.
type AuditResult struct {
	Status        AuditStatus   `json:"status"`
	Reason        string        `json:"reason"`
	FinalResponse FinalResponse `json:"finalResponse"`
	Metadata      AuditMetadata `json:"metadata"`
	Cost          float64       `json:"cost"`
}
