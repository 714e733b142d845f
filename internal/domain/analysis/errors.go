package analysis

import "errors"

// Request-level errors. The router maps these onto HTTP statuses; none of
// them ever converts into a fallback result.
var (
	// ErrDocumentNotFound: no document row for the requested id.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrRateLimited: the per-user throttle denied the request.
	ErrRateLimited = errors.New("too many analysis requests")
	// ErrInvalidInlineData: caller-supplied inline payload is not valid base64.
	ErrInvalidInlineData = errors.New("inline payload is not valid base64")
	// ErrFileTooLarge: the document exceeds the analyzable size limit,
	// detected on the recorded size, the probed size, or the downloaded bytes.
	ErrFileTooLarge = errors.New("document exceeds maximum analyzable size")
	// ErrFetchFailed: the document bytes could not be retrieved from the
	// blob delivery paths. Without bytes there is nothing to score.
	ErrFetchFailed = errors.New("failed to fetch document from storage")
)
