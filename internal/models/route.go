// internal/models/route.go
package models

// OutOfScope is the primary-agent sentinel used when no domain applies.
const OutOfScope = "out_of_scope"

// RouteDecision is the canonical routing outcome. Agents is empty if and
// only if PrimaryAgent is OutOfScope.
type RouteDecision struct {
	Agents       []string `json:"agents"`
	PrimaryAgent string   `json:"primaryAgent"`
	Reason       string   `json:"reason"`
	Confidence   float64  `json:"confidence"`
}

// IsOutOfScope reports whether the decision selects no specialist.
func (d *RouteDecision) IsOutOfScope() bool {
	return d == nil || len(d.Agents) == 0 || d.PrimaryAgent == OutOfScope
}

// OutOfScopeDecision builds an empty decision carrying reason.
func OutOfScopeDecision(reason string) *RouteDecision {
	return &RouteDecision{
		Agents:       []string{},
		PrimaryAgent: OutOfScope,
		Reason:       reason,
		Confidence:   0.0,
	}
}
