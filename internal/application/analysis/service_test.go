package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	domai "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/ai"
	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

type fakeDocRepo struct {
	doc *documents.Document

	metaUpdated  bool
	metaScore    int
	metaAnalyzed time.Time
}

func (f *fakeDocRepo) Save(ctx context.Context, d *documents.Document) error { return nil }

func (f *fakeDocRepo) Get(ctx context.Context, owner string, id documents.DocumentID) (*documents.Document, error) {
	if f.doc != nil && f.doc.OwnerID == owner && f.doc.ID == id {
		return f.doc, nil
	}
	return nil, nil
}

func (f *fakeDocRepo) Paginate(ctx context.Context, owner string, page, pageSize int) ([]*documents.Document, error) {
	return nil, nil
}

func (f *fakeDocRepo) UpdateAnalysisMeta(ctx context.Context, id documents.DocumentID, score int, analyzedAt time.Time) error {
	f.metaUpdated = true
	f.metaScore = score
	f.metaAnalyzed = analyzedAt
	return nil
}

type fakeAnalysisRepo struct {
	saved   []*domain.Outcome
	saveErr error
}

func (f *fakeAnalysisRepo) Save(ctx context.Context, o *domain.Outcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, o)
	return nil
}

func (f *fakeAnalysisRepo) Paginate(ctx context.Context, owner, documentID string, page, pageSize int) ([]*domain.Outcome, error) {
	return f.saved, nil
}

func (f *fakeAnalysisRepo) LatestByDocument(ctx context.Context, owner, documentID string) (*domain.Outcome, error) {
	if len(f.saved) == 0 {
		return nil, nil
	}
	return f.saved[len(f.saved)-1], nil
}

type fakeResolver struct {
	data  []byte
	mime  string
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, doc *documents.Document, inlineData, inlineMime string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(data []byte, mimeType string) (string, error) {
	return f.text, f.err
}

type fakeThrottle struct{ allow bool }

func (f *fakeThrottle) Allow(key string) bool { return f.allow }

type fakeAI struct {
	result *domain.Result
	err    error
	calls  int
}

func (f *fakeAI) Analyze(ctx context.Context, data []byte, mimeType string) (*domain.Result, error) {
	f.calls++
	return f.result, f.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

const (
	testOwner = "owner-1"
	testDocID = "0b7e4b9e-8f4a-4c4e-9b1a-6f2d3c4e5a6b"
)

func testDocument() *documents.Document {
	return &documents.Document{
		ID:        documents.DocumentID(testDocID),
		OwnerID:   testOwner,
		FileName:  "resume.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 1024,
	}
}

func newTestService(docs *fakeDocRepo, analyses *fakeAnalysisRepo, resolver *fakeResolver, ai domai.Client, extractor *fakeExtractor, throttle *fakeThrottle) *Service {
	return &Service{
		Documents:       docs,
		Analyses:        analyses,
		Resolver:        resolver,
		AI:              ai,
		Extractor:       extractor,
		Throttle:        throttle,
		Clock:           fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Logger:          zap.NewNop(),
		MaxFileBytes:    5 << 20,
		DefaultKeywords: []string{"javascript", "react", "node", "typescript", "nextjs"},
	}
}

func TestAnalyzeFallbackWithoutRemoteClient(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{}
	resolver := &fakeResolver{data: []byte("pdf bytes"), mime: "application/pdf"}
	extractor := &fakeExtractor{text: "javascript react node"}
	svc := newTestService(docs, analyses, resolver, nil, extractor, &fakeThrottle{allow: true})

	out, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !out.UsedFallback {
		t.Error("expected fallback outcome")
	}
	if out.FallbackReason != domain.ReasonParse {
		t.Errorf("FallbackReason = %s, want %s", out.FallbackReason, domain.ReasonParse)
	}
	if out.Result.ATSScore != 60 {
		t.Errorf("ATSScore = %d, want 60", out.Result.ATSScore)
	}
	if got := out.Result.Keywords.Missing; len(got) != 2 || got[0] != "typescript" || got[1] != "nextjs" {
		t.Errorf("Missing = %v, want [typescript nextjs]", got)
	}
	if len(analyses.saved) != 1 {
		t.Fatalf("saved outcomes = %d, want 1", len(analyses.saved))
	}
	if !docs.metaUpdated || docs.metaScore != 60 {
		t.Errorf("document meta not updated, got score %d", docs.metaScore)
	}
}

func TestAnalyzeRemoteSuccess(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{}
	resolver := &fakeResolver{data: []byte("pdf bytes"), mime: "application/pdf"}
	ai := &fakeAI{result: &domain.Result{
		ATSScore: 88,
		Feedback: domain.Feedback{Positive: []string{"good"}, Improvements: []string{}},
		Keywords: domain.Keywords{Extracted: []string{"go"}, Missing: []string{}},
	}}
	svc := newTestService(docs, analyses, resolver, ai, &fakeExtractor{}, &fakeThrottle{allow: true})

	out, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if out.UsedFallback {
		t.Error("remote success must not be marked as fallback")
	}
	if out.FallbackReason != "" {
		t.Errorf("FallbackReason = %q, want empty", out.FallbackReason)
	}
	if out.Result.ATSScore != 88 {
		t.Errorf("ATSScore = %d, want 88", out.Result.ATSScore)
	}
	if docs.metaScore != 88 {
		t.Errorf("meta score = %d, want 88", docs.metaScore)
	}
}

func TestAnalyzeRemoteFailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		remoteErr  error
		wantReason domain.FallbackReason
	}{
		{"quota sentinel", domai.ErrQuotaExceeded, domain.ReasonQuota},
		{"quota with retry time", &domai.QuotaError{RetryAt: time.Now()}, domain.ReasonQuota},
		{"empty reply", domai.NewParseError(domai.CodeEmpty, errors.New("empty")), domain.ReasonEmpty},
		{"empty reply in production", domai.NewParseError(domai.CodeEmptyProd, errors.New("empty")), domain.ReasonEmptyProd},
		{"safety rejection", domai.NewParseError(domai.CodeSafety, errors.New("blocked")), domain.ReasonSafety},
		{"deadline exhausted", domai.NewParseError(domai.CodeTimeout, errors.New("deadline")), domain.ReasonParse},
		{"unknown failure", fmt.Errorf("connection reset"), domain.ReasonParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &fakeDocRepo{doc: testDocument()}
			analyses := &fakeAnalysisRepo{}
			resolver := &fakeResolver{data: []byte("pdf bytes"), mime: "application/pdf"}
			ai := &fakeAI{err: tt.remoteErr}
			extractor := &fakeExtractor{text: "javascript react node"}
			svc := newTestService(docs, analyses, resolver, ai, extractor, &fakeThrottle{allow: true})

			out, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if !out.UsedFallback {
				t.Error("expected fallback outcome")
			}
			if out.FallbackReason != tt.wantReason {
				t.Errorf("FallbackReason = %s, want %s", out.FallbackReason, tt.wantReason)
			}
			if out.Result.ATSScore != 60 {
				t.Errorf("ATSScore = %d, want deterministic 60", out.Result.ATSScore)
			}
			if len(analyses.saved) != 1 {
				t.Errorf("saved outcomes = %d, fallback must still persist", len(analyses.saved))
			}
		})
	}
}

func TestAnalyzeThrottled(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	resolver := &fakeResolver{data: []byte("pdf bytes")}
	svc := newTestService(docs, &fakeAnalysisRepo{}, resolver, nil, &fakeExtractor{}, &fakeThrottle{allow: false})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if resolver.calls != 0 {
		t.Error("throttled request must not resolve the document source")
	}
}

func TestAnalyzeDocumentNotFound(t *testing.T) {
	svc := newTestService(&fakeDocRepo{}, &fakeAnalysisRepo{}, &fakeResolver{}, nil, &fakeExtractor{}, &fakeThrottle{allow: true})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("err = %v, want document not found", err)
	}
}

func TestAnalyzeOwnerScoping(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	svc := newTestService(docs, &fakeAnalysisRepo{}, &fakeResolver{}, nil, &fakeExtractor{}, &fakeThrottle{allow: true})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: "someone-else", DocumentID: testDocID})
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("err = %v, want not found for foreign owner", err)
	}
}

func TestAnalyzeSizeCheckedBeforeResolution(t *testing.T) {
	doc := testDocument()
	doc.SizeBytes = 6 << 20
	docs := &fakeDocRepo{doc: doc}
	resolver := &fakeResolver{data: []byte("pdf bytes")}
	svc := newTestService(docs, &fakeAnalysisRepo{}, resolver, nil, &fakeExtractor{}, &fakeThrottle{allow: true})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("err = %v, want file too large", err)
	}
	if resolver.calls != 0 {
		t.Error("oversized document must be rejected before any fetch")
	}
}

func TestAnalyzeResolutionFailureSurfaces(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{}
	resolver := &fakeResolver{err: domain.ErrFetchFailed}
	svc := newTestService(docs, analyses, resolver, nil, &fakeExtractor{}, &fakeThrottle{allow: true})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("err = %v, want fetch failed", err)
	}
	if len(analyses.saved) != 0 {
		t.Error("resolution failures must not persist an outcome")
	}
}

func TestAnalyzeCallerKeywordsOverrideDefaults(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{}
	resolver := &fakeResolver{data: []byte("pdf bytes"), mime: "application/pdf"}
	extractor := &fakeExtractor{text: "golang kubernetes"}
	svc := newTestService(docs, analyses, resolver, nil, extractor, &fakeThrottle{allow: true})

	out, err := svc.Analyze(context.Background(), AnalyzeCommand{
		OwnerID:    testOwner,
		DocumentID: testDocID,
		Keywords:   []string{"golang", "kubernetes"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Result.ATSScore != 100 {
		t.Errorf("ATSScore = %d, want 100 against caller keywords", out.Result.ATSScore)
	}
}

func TestAnalyzeExtractionFailureScoresZero(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{}
	resolver := &fakeResolver{data: []byte{0xff, 0xfe}, mime: "application/octet-stream"}
	extractor := &fakeExtractor{err: errors.New("not text")}
	svc := newTestService(docs, analyses, resolver, nil, extractor, &fakeThrottle{allow: true})

	out, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Result.ATSScore != 0 {
		t.Errorf("ATSScore = %d, want 0 when no text extracts", out.Result.ATSScore)
	}
	if len(out.Result.Keywords.Missing) != 5 {
		t.Errorf("Missing = %v, want all default keywords", out.Result.Keywords.Missing)
	}
}

func TestAnalyzePersistFailureSurfaces(t *testing.T) {
	docs := &fakeDocRepo{doc: testDocument()}
	analyses := &fakeAnalysisRepo{saveErr: errors.New("db down")}
	resolver := &fakeResolver{data: []byte("pdf bytes"), mime: "application/pdf"}
	extractor := &fakeExtractor{text: "javascript"}
	svc := newTestService(docs, analyses, resolver, nil, extractor, &fakeThrottle{allow: true})

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{OwnerID: testOwner, DocumentID: testDocID})
	if err == nil {
		t.Fatal("expected persistence error to surface")
	}
	if docs.metaUpdated {
		t.Error("meta must not update when the outcome failed to persist")
	}
}
