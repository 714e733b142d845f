package analysis

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/application"
	domai "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/ai"
	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	documents "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

// SourceResolver obtains the document bytes (inline payload or remote fetch).
type SourceResolver interface {
	Resolve(ctx context.Context, doc *documents.Document, inlineData, inlineMime string) ([]byte, string, error)
}

// TextExtractor is the external extraction collaborator.
type TextExtractor interface {
	Extract(data []byte, mimeType string) (string, error)
}

// Throttle bounds how often one user may trigger analysis.
type Throttle interface {
	Allow(key string) bool
}

// Service implements the analysis use-cases. Safe for concurrent use; no
// state is shared between requests except the injected throttle.
type Service struct {
	Documents documents.Repository
	Analyses  domain.Repository
	Resolver  SourceResolver
	AI        domai.Client // nil when no remote credential is configured
	Extractor TextExtractor
	Throttle  Throttle
	Clock     application.Clock
	Logger    *zap.Logger

	MaxFileBytes    int64
	DefaultKeywords []string
}

// AnalyzeCommand is one analysis request.
type AnalyzeCommand struct {
	OwnerID    string
	DocumentID string
	Keywords   []string
	InlineData string // base64, optional
	InlineMime string
}

// Analyze runs the pipeline: throttle → size check → source resolution →
// remote attempt → fallback classification → persist. Remote-service
// failures always degrade to the deterministic scorer; only client-input and
// collaborator errors surface to the caller.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.Outcome, error) {
	if !s.Throttle.Allow(cmd.OwnerID) {
		return nil, domain.ErrRateLimited
	}

	doc, err := s.Documents.Get(ctx, cmd.OwnerID, documents.DocumentID(cmd.DocumentID))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrDocumentNotFound
	}

	// Recorded size gates the request before any network work happens.
	if doc.SizeBytes > s.MaxFileBytes {
		return nil, domain.ErrFileTooLarge
	}

	data, mimeType, err := s.Resolver.Resolve(ctx, doc, cmd.InlineData, cmd.InlineMime)
	if err != nil {
		// No bytes means nothing to score; resolution failures never
		// become fallback results.
		return nil, err
	}

	keywords := cmd.Keywords
	if len(keywords) == 0 {
		keywords = s.DefaultKeywords
	}

	result, usedFallback, reason := s.remoteOrFallback(ctx, data, mimeType, keywords)

	outcome := &domain.Outcome{
		ID:             domain.OutcomeID(uuid.New().String()),
		DocumentID:     cmd.DocumentID,
		OwnerID:        cmd.OwnerID,
		Result:         result,
		UsedFallback:   usedFallback,
		FallbackReason: reason,
		CreatedAt:      s.Clock.Now(),
	}

	if err := s.Analyses.Save(ctx, outcome); err != nil {
		return nil, err
	}
	if err := s.Documents.UpdateAnalysisMeta(ctx, doc.ID, result.ATSScore, outcome.CreatedAt); err != nil {
		return nil, err
	}

	s.Logger.Info("analysis persisted",
		zap.String("document_id", cmd.DocumentID),
		zap.Int("score", result.ATSScore),
		zap.Bool("used_fallback", usedFallback),
		zap.String("fallback_reason", string(reason)),
	)
	return outcome, nil
}

func (s *Service) remoteOrFallback(ctx context.Context, data []byte, mimeType string, keywords []string) (domain.Result, bool, domain.FallbackReason) {
	if s.AI == nil {
		s.Logger.Warn("no remote credential configured, scoring locally")
		return s.fallback(data, mimeType, keywords), true, domain.ReasonParse
	}

	result, err := s.AI.Analyze(ctx, data, mimeType)
	if err == nil {
		return *result, false, ""
	}

	reason := classifyRemoteFailure(err)
	s.Logger.Warn("remote analysis failed, scoring locally",
		zap.String("fallback_reason", string(reason)),
		zap.Error(err),
	)
	return s.fallback(data, mimeType, keywords), true, reason
}

func (s *Service) fallback(data []byte, mimeType string, keywords []string) domain.Result {
	text, err := s.Extractor.Extract(data, mimeType)
	if err != nil {
		s.Logger.Warn("text extraction failed, scoring empty text", zap.Error(err))
		text = ""
	}
	return domain.FallbackResult(text, keywords)
}

// classifyRemoteFailure maps a remote attempt error onto the persisted
// fallback reason. Everything unrecognized lands on PARSE.
func classifyRemoteFailure(err error) domain.FallbackReason {
	if errors.Is(err, domai.ErrQuotaExceeded) {
		return domain.ReasonQuota
	}
	var parseErr *domai.ParseError
	if errors.As(err, &parseErr) {
		switch parseErr.Code {
		case domai.CodeEmpty:
			return domain.ReasonEmpty
		case domai.CodeEmptyProd:
			return domain.ReasonEmptyProd
		case domai.CodeSafety:
			return domain.ReasonSafety
		}
	}
	return domain.ReasonParse
}

// History lists a document's persisted outcomes, newest first.
func (s *Service) History(ctx context.Context, owner, documentID string, page, pageSize int) ([]*domain.Outcome, error) {
	return s.Analyses.Paginate(ctx, owner, documentID, page, pageSize)
}

// Latest returns the most recent outcome for a document, nil when none.
func (s *Service) Latest(ctx context.Context, owner, documentID string) (*domain.Outcome, error) {
	return s.Analyses.LatestByDocument(ctx, owner, documentID)
}
