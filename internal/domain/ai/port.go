package ai

import (
	"context"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
)

// Client is the remote analysis port. Implementations return either a fully
// validated result, a *QuotaError, a *ParseError, or a wrapped unexpected
// error; the orchestrator classifies all three into a fallback reason.
type Client interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (*analysis.Result, error)
}
