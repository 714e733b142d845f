package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/ai"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/infra/ai/prompt"
)

const maxTokens = 2048

// ExtractFunc converts document bytes to plain text. OpenAI chat completions
// take text, not document payloads, so extraction happens before submission.
type ExtractFunc func(data []byte, mimeType string) (string, error)

// Client is the alternate remote analysis provider: single-phase, text-only,
// JSON response mode. It implements the same ai.Client port as the gemini
// client so the orchestrator never knows which provider is configured.
type Client struct {
	*openai.Client
	Model   string
	Extract ExtractFunc
}

func NewClient(apiKey, model string, extract ExtractFunc) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model, Extract: extract}
}

func (c *Client) Analyze(ctx context.Context, data []byte, mimeType string) (*analysis.Result, error) {
	text, err := c.Extract(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text for completion: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domai.NewParseError(domai.CodeEmpty, errors.New("document contains no extractable text"))
	}

	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.ResumeAnalysis()},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domai.NewParseError(domai.CodeEmpty, errors.New("completion returned no choices"))
	}

	res, perr := analysis.ParseResult(resp.Choices[0].Message.Content)
	if perr != nil {
		return nil, domai.NewParseError(domai.CodeEmpty, perr)
	}
	return res, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &domai.QuotaError{}
		case http.StatusBadRequest:
			return domai.NewParseError(domai.CodeSafety, err)
		}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
