package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type wireFeedback struct {
	Positive     []string `json:"positive"`
	Improvements []string `json:"improvements"`
}

type wireKeywords struct {
	Extracted []string `json:"extracted"`
	Missing   []string `json:"missing"`
}

type wireResult struct {
	ATSScore *float64      `json:"atsScore"`
	Feedback *wireFeedback `json:"feedback"`
	Keywords *wireKeywords `json:"keywords"`
}

// ParseResult decodes a raw model reply into a validated Result. It accepts
// plain JSON; if that fails it strips a single fenced code block (with or
// without a language tag) and retries once. Partial or schema-violating
// content is rejected outright, never returned in truncated form.
func ParseResult(raw string) (*Result, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		cleaned = stripCodeFence(cleaned)
		if err2 := json.Unmarshal([]byte(cleaned), &wire); err2 != nil {
			return nil, fmt.Errorf("response is not valid JSON: %w", err)
		}
	}

	return validate(&wire)
}

func validate(wire *wireResult) (*Result, error) {
	if wire.ATSScore == nil {
		return nil, fmt.Errorf("missing atsScore")
	}
	score := *wire.ATSScore
	if score != math.Trunc(score) {
		return nil, fmt.Errorf("atsScore %v is not an integer", score)
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("atsScore %v out of range [0,100]", score)
	}
	if wire.Feedback == nil || wire.Feedback.Positive == nil || wire.Feedback.Improvements == nil {
		return nil, fmt.Errorf("missing feedback lists")
	}
	if wire.Keywords == nil || wire.Keywords.Extracted == nil || wire.Keywords.Missing == nil {
		return nil, fmt.Errorf("missing keyword lists")
	}

	return &Result{
		ATSScore: int(score),
		Feedback: Feedback{
			Positive:     wire.Feedback.Positive,
			Improvements: wire.Feedback.Improvements,
		},
		Keywords: Keywords{
			Extracted: wire.Keywords.Extracted,
			Missing:   wire.Keywords.Missing,
		},
	}, nil
}

// stripCodeFence removes one outer markdown code fence. Model replies often
// arrive as ```json ... ``` despite a JSON-only instruction.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSpace(raw)
	if idx := strings.LastIndex(raw, "```"); idx != -1 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(raw)
}
