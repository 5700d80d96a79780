package librarian

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SchemaID names a structured payload shape expected from the generator.
type SchemaID string

const (
	SchemaLibrarianDecision  SchemaID = "LibrarianDecision"
	SchemaRelevanceJudgment  SchemaID = "RelevanceJudgment"
	SchemaEvidenceExtraction SchemaID = "EvidenceExtraction"
)

var (
	fenceRegex = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)(?:```|\\z)") //nolint:gochecknoglobals
	thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)                      //nolint:gochecknoglobals
)

// StripThinkBlocks removes <think>...</think> blocks from completions.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// ExtractFence returns the body of the first ```json fenced block in raw.
// A block with no closing fence runs to the end of the text.
func ExtractFence(raw string) (string, bool) {
	m := fenceRegex.FindStringSubmatch(StripThinkBlocks(raw))
	if len(m) != 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Parse decodes the fenced JSON payload of raw and validates it against
// schema. The returned map holds exactly the fields of the schema, with
// relevance judgments normalized to bool.
func Parse(raw string, schema SchemaID) (map[string]any, error) {
	body, ok := ExtractFence(raw)
	if !ok {
		return nil, &MalformedResponseError{Reason: "no ```json block found", Raw: raw}
	}
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Raw: raw}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, violation(schema, "(root)", "must be a JSON object")
	}

	switch schema {
	case SchemaLibrarianDecision:
		return validateDecision(obj)
	case SchemaRelevanceJudgment:
		return validateJudgment(obj)
	case SchemaEvidenceExtraction:
		return validateExtraction(obj)
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
}

// ParseDecision parses a Librarian completion into a Decision.
func ParseDecision(raw string) (Decision, error) {
	m, err := Parse(raw, SchemaLibrarianDecision)
	if err != nil {
		return nil, err
	}
	reason := m["reason"].(string)
	if m["action"] == actionQuery {
		return QueryDecision{Query: m["query"].(string), Reason: reason}, nil
	}
	return AnswerDecision{Answer: m["answer"].(string), Reason: reason}, nil
}

// ParseJudgment parses a relevance completion. Any error means the document
// must not be treated as relevant.
func ParseJudgment(raw string) (bool, error) {
	m, err := Parse(raw, SchemaRelevanceJudgment)
	if err != nil {
		return false, err
	}
	return m["relevant"].(bool), nil
}

// ParseExtraction parses an evidence completion. The result is never nil.
func ParseExtraction(raw string) ([]EvidenceEntry, error) {
	m, err := Parse(raw, SchemaEvidenceExtraction)
	if err != nil {
		return nil, err
	}
	items := m["entries"].([]any)
	entries := make([]EvidenceEntry, 0, len(items))
	for _, it := range items {
		e := it.(map[string]any)
		entries = append(entries, EvidenceEntry{Content: e["content"].(string), Reason: e["reason"].(string)})
	}
	return entries, nil
}

func violation(schema SchemaID, field, reason string) *SchemaViolationError {
	return &SchemaViolationError{Schema: schema, Field: field, Reason: reason}
}

func requireString(schema SchemaID, obj map[string]any, field string, nonEmpty bool) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", violation(schema, field, "is missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", violation(schema, field, "must be a string")
	}
	if nonEmpty && strings.TrimSpace(s) == "" {
		return "", violation(schema, field, "must not be empty")
	}
	return s, nil
}

func validateDecision(obj map[string]any) (map[string]any, error) {
	const schema = SchemaLibrarianDecision
	action, err := requireString(schema, obj, "action", false)
	if err != nil {
		return nil, err
	}
	if action != actionQuery && action != actionAnswer {
		return nil, violation(schema, "action", fmt.Sprintf("must be %q or %q, got %q", actionQuery, actionAnswer, action))
	}
	reason, err := requireString(schema, obj, "reason", false)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"action": action, "reason": reason}
	payload, err := requireString(schema, obj, action, true)
	if err != nil {
		return nil, err
	}
	out[action] = strings.TrimSpace(payload)
	return out, nil
}

func validateJudgment(obj map[string]any) (map[string]any, error) {
	const schema = SchemaRelevanceJudgment
	v, ok := obj["relevant"]
	if !ok {
		return nil, violation(schema, "relevant", "is missing")
	}
	var relevant bool
	switch t := v.(type) {
	case bool:
		relevant = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			relevant = true
		case "false":
			relevant = false
		default:
			return nil, violation(schema, "relevant", fmt.Sprintf("must be true or false, got %q", t))
		}
	default:
		return nil, violation(schema, "relevant", "must be a boolean")
	}
	return map[string]any{"relevant": relevant}, nil
}

func validateExtraction(obj map[string]any) (map[string]any, error) {
	const schema = SchemaEvidenceExtraction
	v, ok := obj["entries"]
	if !ok {
		return nil, violation(schema, "entries", "is missing")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, violation(schema, "entries", "must be an array")
	}
	entries := make([]any, 0, len(items))
	for i, it := range items {
		e, ok := it.(map[string]any)
		if !ok {
			return nil, violation(schema, fmt.Sprintf("entries[%d]", i), "must be an object")
		}
		out := make(map[string]any, 2)
		for _, field := range []string{"content", "reason"} {
			s, err := requireString(schema, e, field, false)
			if err != nil {
				return nil, violation(schema, fmt.Sprintf("entries[%d].%s", i, field), err.(*SchemaViolationError).Reason)
			}
			out[field] = s
		}
		entries = append(entries, out)
	}
	return map[string]any{"entries": entries}, nil
}
