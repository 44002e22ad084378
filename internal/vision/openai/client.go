// Package openai implements vision.Client on the OpenAI Chat Completions
// API, as an alternative to the default Gemini provider.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"defectmaster-backend/internal/vision"
)

const temperature = 0.4

// Client sends the photo as a base64 data URL with the JSON response format
// enabled.
type Client struct {
	api              *openai.Client
	resolver         vision.Resolver
	relevanceTimeout time.Duration
	analysisTimeout  time.Duration
}

// NewClient constructs an OpenAI-backed vision client.
func NewClient(apiKey string, resolver vision.Resolver, relevanceTimeout, analysisTimeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("model resolver is required")
	}
	return &Client{
		api:              openai.NewClient(apiKey),
		resolver:         resolver,
		relevanceTimeout: relevanceTimeout,
		analysisTimeout:  analysisTimeout,
	}, nil
}

func (c *Client) CheckRelevance(ctx context.Context, photo []byte, objectContext string) (vision.RelevanceResult, error) {
	cfg, err := c.resolver.Resolve(ctx)
	if err != nil {
		return vision.RelevanceResult{}, fmt.Errorf("%w: resolve model config: %v", vision.ErrUnavailable, err)
	}
	raw, err := c.complete(ctx, cfg.RelevanceModel, systemPrompt(cfg.RelevancePrompt), vision.RelevanceInstruction(objectContext), photo, c.relevanceTimeout)
	if err != nil {
		return vision.RelevanceResult{}, err
	}
	return vision.ParseRelevance(raw)
}

func (c *Client) AnalyzeDefects(ctx context.Context, photo []byte, objectContext string) (vision.DefectReport, error) {
	cfg, err := c.resolver.Resolve(ctx)
	if err != nil {
		return vision.DefectReport{}, fmt.Errorf("%w: resolve model config: %v", vision.ErrUnavailable, err)
	}
	raw, err := c.complete(ctx, cfg.AnalysisModel, systemPrompt(cfg.AnalysisPrompt), vision.AnalysisInstruction(objectContext), photo, c.analysisTimeout)
	if err != nil {
		return vision.DefectReport{}, err
	}
	return vision.ParseReport(raw)
}

func (c *Client) complete(ctx context.Context, model, system, instruction string, photo []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(photo)
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: instruction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", vision.ErrMalformedOutput)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message content", vision.ErrMalformedOutput)
	}
	return []byte(content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: openai status %d", vision.ErrQuotaExhausted, apiErr.HTTPStatusCode)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: openai status %d", vision.ErrUnavailable, apiErr.HTTPStatusCode)
		default:
			return fmt.Errorf("%w: openai status %d: %s", vision.ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", vision.ErrUnavailable, err)
}

func systemPrompt(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return vision.DefaultSystemPrompt
}

var _ vision.Client = (*Client)(nil)
