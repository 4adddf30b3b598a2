// internal/models/trace.go
package models

// TraceStep records one pipeline stage for debugging.
type TraceStep struct {
	Step       string      `json:"step"`
	Agent      string      `json:"agent,omitempty"`
	DurationMs int64       `json:"durationMs"`
	Cost       float64     `json:"cost"`
	Result     interface{} `json:"result"`
}
