package ai

import (
	"errors"
	"fmt"
	"time"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error
// (HTTP 429 or similar) and retries were exhausted.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// QuotaError carries the provider's next-allowed-retry time when known.
type QuotaError struct {
	RetryAt time.Time
}

func (e *QuotaError) Error() string {
	if e.RetryAt.IsZero() {
		return ErrQuotaExceeded.Error()
	}
	return fmt.Sprintf("%s, retry at %s", ErrQuotaExceeded, e.RetryAt.Format(time.RFC3339))
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// ParseCode classifies why a remote attempt produced no usable result.
type ParseCode string

const (
	// CodeEmpty: the provider returned nothing usable (blank output or
	// content that failed strict JSON validation; the code is shared).
	CodeEmpty ParseCode = "EMPTY"
	// CodeEmptyProd: the production variant of CodeEmpty, kept distinct so
	// operators can separate genuine emptiness from deadline-shaped failures.
	CodeEmptyProd ParseCode = "EMPTY_PROD"
	// CodeSafety: the provider rejected the request on policy grounds.
	CodeSafety ParseCode = "SAFETY"
	// CodeTimeout: the wall-clock budget ran out before a phase could start.
	CodeTimeout ParseCode = "TIMEOUT"
)

// ParseError is any remote attempt failure that is not a quota problem:
// empty output, unparseable output, policy rejection, or budget exhaustion.
type ParseError struct {
	Code ParseCode
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai response unusable (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("ai response unusable (%s)", e.Code)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err with a classification code.
func NewParseError(code ParseCode, err error) *ParseError {
	return &ParseError{Code: code, Err: err}
}
