package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	domai "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/ai"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/infra/ai/prompt"
)

const (
	defaultModel = "gemini-2.5-flash"

	filePollMaxAttempts = 8
	filePollBaseDelay   = 250 * time.Millisecond

	defaultQuotaBackoff = 2 * time.Second
)

// seams for tests
var (
	sleep   = time.Sleep
	timeNow = time.Now
	jitter  = func() time.Duration { return time.Duration(rand.Int63n(int64(time.Second))) }
)

// generativeAPI is the slice of the GenAI SDK the client needs. Wrapping it
// keeps the two-phase flow testable with fakes.
type generativeAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	UploadFile(ctx context.Context, r io.Reader, cfg *genai.UploadFileConfig) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

type sdkAPI struct {
	client *genai.Client
}

func (s *sdkAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return s.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (s *sdkAPI) UploadFile(ctx context.Context, r io.Reader, cfg *genai.UploadFileConfig) (*genai.File, error) {
	return s.client.Files.Upload(ctx, r, cfg)
}

func (s *sdkAPI) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return s.client.Files.Get(ctx, name, nil)
}

func (s *sdkAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := s.client.Files.Delete(ctx, name, nil)
	return err
}

// Config carries the tunables for the remote analysis client.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	MaxRetries      int
	MaxBackoff      time.Duration
	Deadline        time.Duration // 0 disables the wall-clock budget
	Production      bool
}

// Client talks to the Gemini API: direct inline submission first, then a
// storage-backed retry through the provider's temporary file store.
type Client struct {
	api             generativeAPI
	model           string
	maxOutputTokens int32
	maxRetries      int
	maxBackoff      time.Duration
	deadline        time.Duration
	production      bool
	logger          *zap.Logger
}

// NewClient builds a Client against the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}

	return &Client{
		api:             &sdkAPI{client: sdk},
		model:           model,
		maxOutputTokens: int32(maxTokens),
		maxRetries:      cfg.MaxRetries,
		maxBackoff:      maxBackoff,
		deadline:        cfg.Deadline,
		production:      cfg.Production,
		logger:          logger,
	}, nil
}

// attemptOutcome is what one generation attempt yielded; it only exists to
// decide whether the storage-backed phase should run.
type attemptOutcome struct {
	text         string
	finishReason genai.FinishReason
}

func (o attemptOutcome) sufficient() bool {
	return strings.TrimSpace(o.text) != "" && o.finishReason == genai.FinishReasonStop
}

// Analyze implements the ai.Client port.
func (c *Client) Analyze(ctx context.Context, data []byte, mimeType string) (*analysis.Result, error) {
	start := timeNow()

	if err := c.checkBudget(start); err != nil {
		return nil, err
	}

	out, err := c.generate(ctx, c.inlineContents(data, mimeType))
	if err != nil {
		return nil, err
	}
	if out.sufficient() {
		return c.parse(out.text)
	}

	c.logger.Info("inline attempt insufficient, retrying via file storage",
		zap.String("finish_reason", string(out.finishReason)),
		zap.Int("text_len", len(out.text)),
	)

	if err := c.checkBudget(start); err != nil {
		return nil, err
	}

	out, err = c.storageBacked(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	if !out.sufficient() {
		return nil, domai.NewParseError(c.emptyCode(),
			fmt.Errorf("both attempts insufficient (finish reason %s)", out.finishReason))
	}
	return c.parse(out.text)
}

func (c *Client) parse(raw string) (*analysis.Result, error) {
	res, err := analysis.ParseResult(raw)
	if err != nil {
		return nil, domai.NewParseError(domai.CodeEmpty, err)
	}
	return res, nil
}

// emptyCode distinguishes production emptiness so operators can tell it
// apart from a plain empty reply in development.
func (c *Client) emptyCode() domai.ParseCode {
	if c.production {
		return domai.CodeEmptyProd
	}
	return domai.CodeEmpty
}

// checkBudget fails fast when the wall-clock budget is spent. In-flight
// requests are never aborted; only new phases are refused.
func (c *Client) checkBudget(start time.Time) error {
	if c.deadline <= 0 {
		return nil
	}
	if timeNow().Sub(start) >= c.deadline {
		return domai.NewParseError(domai.CodeTimeout, errors.New("analysis deadline exhausted"))
	}
	return nil
}

func (c *Client) inlineContents(data []byte, mimeType string) []*genai.Content {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		{Text: prompt.ResumeAnalysis()},
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (c *Client) fileContents(f *genai.File, mimeType string) []*genai.Content {
	parts := []*genai.Part{
		{FileData: &genai.FileData{FileURI: f.URI, MIMEType: mimeType}},
		{Text: prompt.ResumeAnalysis()},
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// generate performs one logical attempt, absorbing quota errors with bounded
// retries. Backoff honors the provider's retry hint when present, otherwise
// a jittered default, both capped at the configured ceiling.
func (c *Client) generate(ctx context.Context, contents []*genai.Content) (attemptOutcome, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  c.maxOutputTokens,
	}

	var retryAt time.Time
	for attempt := 0; ; attempt++ {
		resp, err := c.api.GenerateContent(ctx, c.model, contents, cfg)
		if err == nil {
			return extractOutcome(resp), nil
		}

		var apiErr genai.APIError
		if !errors.As(err, &apiErr) {
			return attemptOutcome{}, fmt.Errorf("generate content: %w", err)
		}

		switch apiErr.Code {
		case http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				return attemptOutcome{}, &domai.QuotaError{RetryAt: retryAt}
			}
			delay := retryHint(apiErr)
			if delay <= 0 {
				delay = defaultQuotaBackoff + jitter()
			}
			if delay > c.maxBackoff {
				delay = c.maxBackoff
			}
			retryAt = timeNow().Add(delay)
			c.logger.Warn("gemini quota hit, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			sleep(delay)
		case http.StatusBadRequest:
			// Policy rejections are final; retrying the same bytes cannot help.
			return attemptOutcome{}, domai.NewParseError(domai.CodeSafety, err)
		default:
			return attemptOutcome{}, fmt.Errorf("generate content: %w", err)
		}
	}
}

// storageBacked uploads the document to the provider's temporary file store,
// waits for it to become active and generates against the stored handle.
// The stored file is deleted afterwards regardless of outcome.
func (c *Client) storageBacked(ctx context.Context, data []byte, mimeType string) (attemptOutcome, error) {
	f, err := c.api.UploadFile(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: "resume-analysis",
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case http.StatusTooManyRequests:
				return attemptOutcome{}, &domai.QuotaError{}
			case http.StatusBadRequest:
				return attemptOutcome{}, domai.NewParseError(domai.CodeSafety, err)
			}
		}
		return attemptOutcome{}, fmt.Errorf("upload file: %w", err)
	}

	storedName := f.Name
	defer func() {
		// Best effort: a leftover temporary file is the provider's problem,
		// not a reason to fail the analysis.
		if derr := c.api.DeleteFile(context.Background(), storedName); derr != nil {
			c.logger.Debug("delete stored file failed", zap.String("file", storedName), zap.Error(derr))
		}
	}()

	f, err = c.awaitActive(ctx, f)
	if err != nil {
		return attemptOutcome{}, err
	}

	return c.generate(ctx, c.fileContents(f, mimeType))
}

// awaitActive polls the stored file with small exponential delays until it
// reports active, up to a capped attempt count.
func (c *Client) awaitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	delay := filePollBaseDelay
	for attempt := 0; attempt < filePollMaxAttempts; attempt++ {
		switch f.State {
		case genai.FileStateActive:
			return f, nil
		case genai.FileStateFailed:
			return nil, domai.NewParseError(c.emptyCode(), fmt.Errorf("stored file %s failed processing", f.Name))
		}

		sleep(delay)
		delay *= 2

		next, err := c.api.GetFile(ctx, f.Name)
		if err != nil {
			return nil, fmt.Errorf("poll stored file: %w", err)
		}
		f = next
	}
	return nil, domai.NewParseError(c.emptyCode(), fmt.Errorf("stored file %s never became active", f.Name))
}

func extractOutcome(resp *genai.GenerateContentResponse) attemptOutcome {
	if resp == nil || len(resp.Candidates) == 0 {
		return attemptOutcome{}
	}
	candidate := resp.Candidates[0]
	out := attemptOutcome{finishReason: candidate.FinishReason}
	if candidate.Content == nil {
		return out
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		builder.WriteString(part.Text)
	}
	out.text = builder.String()
	return out
}

// retryHint extracts the provider-supplied retry delay from a 429 error's
// RetryInfo detail, when present.
func retryHint(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		typ, _ := detail["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			continue
		}
		return d
	}
	return 0
}
