// internal/models/answer.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredPayload is the common shape of a specialist answer. Keys the
// decoder does not map land in Extensions.
type StructuredPayload struct {
	Answer      string                 `json:"answer,omitempty"`
	Regulations []string               `json:"regulations,omitempty"`
	Steps       []string               `json:"steps,omitempty"`
	Confidence  *float64               `json:"confidence,omitempty"`
	Factors     map[string]bool        `json:"confidenceFactors,omitempty"`
	Breakdown   map[string]interface{} `json:"confidenceBreakdown,omitempty"`
	Error       string                 `json:"error,omitempty"`
	RawPreview  string                 `json:"rawPreview,omitempty"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

type payloadField int

const (
	fieldAnswer payloadField = iota
	fieldRegulations
	fieldSteps
	fieldConfidence
	fieldFactors
	fieldBreakdown
	fieldError
)

// payloadKeys lists, per field, the keys accepted from model output in
// priority order. The first key present wins; later variants go to
// Extensions untouched.
var payloadKeys = []struct {
	field payloadField
	keys  []string
}{
	{fieldAnswer, []string{"answer", "respuesta", "Respuesta", "response", "respuesta_directa", "resumen", "summary"}},
	{fieldRegulations, []string{"regulations", "normativa", "Normativa", "normativa_aplicable", "regulaciones", "comunicaciones", "resoluciones", "decretos"}},
	{fieldSteps, []string{"steps", "pasos", "procedimiento", "requisitos", "requirements"}},
	{fieldConfidence, []string{"confidence", "confianza"}},
	{fieldFactors, []string{"confidence_factors", "confidenceFactors", "factores_confianza"}},
	{fieldBreakdown, []string{"confidence_breakdown", "confidenceBreakdown"}},
	{fieldError, []string{"error"}},
}

// DecodePayload maps a raw model object onto StructuredPayload.
func DecodePayload(raw map[string]interface{}) StructuredPayload {
	var p StructuredPayload
	used := make(map[string]bool)

	for _, entry := range payloadKeys {
		for _, key := range entry.keys {
			value, ok := raw[key]
			if !ok || value == nil {
				continue
			}
			used[key] = true
			assignField(&p, entry.field, value)
			break
		}
	}

	for key, value := range raw {
		if used[key] {
			continue
		}
		if p.Extensions == nil {
			p.Extensions = make(map[string]interface{})
		}
		p.Extensions[key] = value
	}
	return p
}

func assignField(p *StructuredPayload, field payloadField, value interface{}) {
	switch field {
	case fieldAnswer:
		p.Answer = Stringify(value)
	case fieldRegulations:
		p.Regulations = StringList(value)
	case fieldSteps:
		p.Steps = StringList(value)
	case fieldConfidence:
		if f, ok := toFloat(value); ok {
			if f > 1 && f <= 100 {
				f = f / 100
			}
			p.Confidence = &f
		}
	case fieldFactors:
		if m, ok := value.(map[string]interface{}); ok {
			p.Factors = make(map[string]bool, len(m))
			for k, v := range m {
				if b, ok := v.(bool); ok {
					p.Factors[k] = b
				}
			}
		}
	case fieldBreakdown:
		if m, ok := value.(map[string]interface{}); ok {
			p.Breakdown = m
		}
	case fieldError:
		p.Error = Stringify(value)
	}
}

// ConfidenceOr returns the self-reported confidence or def when absent.
func (p StructuredPayload) ConfidenceOr(def float64) float64 {
	if p.Confidence == nil {
		return def
	}
	return *p.Confidence
}

// Stringify renders a loosely typed JSON value as display text.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case []interface{}:
		return strings.Join(StringList(t), "; ")
	case map[string]interface{}:
		return describeObject(t)
	default:
		return fmt.Sprint(t)
	}
}

// StringList flattens a string, list or object into display strings.
func StringList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := Stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		if s := Stringify(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

var objectLabelKeys = []string{"numero", "number", "nombre", "name", "id", "titulo", "title"}
var objectTextKeys = []string{"descripcion", "description", "detalle", "texto", "text"}

func describeObject(m map[string]interface{}) string {
	label := firstString(m, objectLabelKeys)
	text := firstString(m, objectTextKeys)
	switch {
	case label != "" && text != "":
		return label + ": " + text
	case label != "":
		return label
	case text != "":
		return text
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprint(m)
	}
	return string(data)
}

func firstString(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := Stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// SpecialistAnswer is the well-formed output of one specialist call.
type SpecialistAnswer struct {
	Domain         string            `json:"domain"`
	Payload        StructuredPayload `json:"payload"`
	SearchMetadata SearchMetadata    `json:"searchMetadata"`
	Cost           float64           `json:"cost"`
	Error          string            `json:"error,omitempty"`
}

// Failed reports whether the answer is error-tagged.
func (a *SpecialistAnswer) Failed() bool {
	return a == nil || a.Error != ""
}
