package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ParseStage reports which step of ParseJSONObject produced the object.
type ParseStage int

const (
	StageFailed ParseStage = iota
	// StageStrict means the whole text was a JSON object.
	StageStrict
	// StageSalvaged means an object was cut out of surrounding text.
	StageSalvaged
)

func (s ParseStage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageSalvaged:
		return "salvaged"
	default:
		return "failed"
	}
}

// ErrNoJSONObject is returned when neither stage yields an object.
var ErrNoJSONObject = errors.New("no JSON object in completion")

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseJSONObject decodes model output in two stages: the text as-is, then
// the widest {...} substring (code fences, prose before or after).
func ParseJSONObject(text string) (map[string]interface{}, ParseStage, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err == nil && obj != nil {
		return obj, StageStrict, nil
	}

	candidate := objectPattern.FindString(text)
	if candidate == "" {
		return nil, StageFailed, ErrNoJSONObject
	}
	obj = nil
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return nil, StageFailed, ErrNoJSONObject
	}
	return obj, StageSalvaged, nil
}

// Preview returns at most n runes of s, marking truncation with "...".
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
