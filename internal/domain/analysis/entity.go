package analysis

import "time"

// OutcomeID identifier type
type OutcomeID string

// FallbackReason classifies why the deterministic scorer produced the result
// instead of the remote provider.
type FallbackReason string

const (
	ReasonQuota     FallbackReason = "QUOTA"
	ReasonParse     FallbackReason = "PARSE"
	ReasonEmpty     FallbackReason = "EMPTY"
	ReasonEmptyProd FallbackReason = "EMPTY_PROD"
	ReasonSafety    FallbackReason = "SAFETY"
)

// Feedback holds the narrative part of a result.
type Feedback struct {
	Positive     []string `json:"positive"`
	Improvements []string `json:"improvements"`
}

// Keywords holds the keyword gap analysis.
type Keywords struct {
	Extracted []string `json:"extracted"`
	Missing   []string `json:"missing"`
}

// Result is the analysis payload. Remote and fallback origins produce the
// same shape; callers only see the origin through the outcome flags.
type Result struct {
	ATSScore int      `json:"atsScore"`
	Feedback Feedback `json:"feedback"`
	Keywords Keywords `json:"keywords"`
}

// Outcome is the persisted record of one orchestration run. Created once,
// never mutated. Invariant: FallbackReason != "" exactly when UsedFallback.
type Outcome struct {
	ID             OutcomeID      `json:"id"`
	DocumentID     string         `json:"document_id"`
	OwnerID        string         `json:"owner_id"`
	Result         Result         `json:"result"`
	UsedFallback   bool           `json:"used_fallback"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
