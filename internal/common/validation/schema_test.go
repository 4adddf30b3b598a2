package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"agents": {"type": "array", "items": {"type": "string"}},
		"nested": {
			"type": "object",
			"required": ["title"],
			"properties": {"title": {"type": "string"}}
		}
	}
}`

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile("test", testSchema)

	tests := []struct {
		name   string
		doc    interface{}
		valid  bool
		fields []string
	}{
		{
			name:  "valid map",
			doc:   map[string]interface{}{"question": "¿Qué es el SIMI?", "agents": []interface{}{"comex"}},
			valid: true,
		},
		{
			name: "valid struct",
			doc: struct {
				Question string `json:"question"`
			}{Question: "hola"},
			valid: true,
		},
		{
			name:   "missing question",
			doc:    map[string]interface{}{},
			fields: []string{"question"},
		},
		{
			name:   "empty question",
			doc:    map[string]interface{}{"question": ""},
			fields: []string{"question"},
		},
		{
			name:   "wrong item type",
			doc:    map[string]interface{}{"question": "x", "agents": []interface{}{1}},
			fields: []string{"agents.0"},
		},
		{
			name:   "nested required",
			doc:    map[string]interface{}{"question": "x", "nested": map[string]interface{}{}},
			fields: []string{"nested.title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate(tt.doc)
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
			for _, f := range tt.fields {
				assert.True(t, result.HasErrors(f), "expected error on %s, got %v", f, result.GetErrorMessages())
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": "nonsense"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestValidationResult_GetErrorsForField(t *testing.T) {
	vr := &ValidationResult{Errors: []ValidationError{
		{Field: "respuesta_final.titulo"},
		{Field: "respuesta_final"},
		{Field: "status"},
	}}
	assert.Len(t, vr.GetErrorsForField("respuesta_final"), 2)
	assert.Equal(t, []string{"status: "}, (&ValidationResult{Errors: []ValidationError{{Field: "status"}}}).GetErrorMessages())
}
