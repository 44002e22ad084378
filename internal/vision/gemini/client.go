// Package gemini implements vision.Client against the Google Generative
// Language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"defectmaster-backend/internal/vision"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// temperature matches the setting both stages were tuned with.
const temperature = 0.4

// Client calls Gemini generateContent with an inline JPEG and a strict JSON
// response mode.
type Client struct {
	apiKey           string
	baseURL          string
	resolver         vision.Resolver
	relevanceTimeout time.Duration
	analysisTimeout  time.Duration
	httpClient       *http.Client
}

// NewClient constructs a Gemini client. The resolver supplies models and
// system prompts per call so settings changes apply without a restart.
func NewClient(apiKey string, resolver vision.Resolver, relevanceTimeout, analysisTimeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("model resolver is required")
	}
	return &Client{
		apiKey:           apiKey,
		baseURL:          defaultBaseURL,
		resolver:         resolver,
		relevanceTimeout: relevanceTimeout,
		analysisTimeout:  analysisTimeout,
		// Per-call deadlines come from the stage timeouts, not the client.
		httpClient: &http.Client{},
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CheckRelevance(ctx context.Context, photo []byte, objectContext string) (vision.RelevanceResult, error) {
	cfg, err := c.resolver.Resolve(ctx)
	if err != nil {
		return vision.RelevanceResult{}, fmt.Errorf("%w: resolve model config: %v", vision.ErrUnavailable, err)
	}
	raw, err := c.generate(ctx, cfg.RelevanceModel, systemPrompt(cfg.RelevancePrompt), vision.RelevanceInstruction(objectContext), photo, c.relevanceTimeout)
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
	raw, err := c.generate(ctx, cfg.AnalysisModel, systemPrompt(cfg.AnalysisPrompt), vision.AnalysisInstruction(objectContext), photo, c.analysisTimeout)
	if err != nil {
		return vision.DefectReport{}, err
	}
	return vision.ParseReport(raw)
}

func (c *Client) generate(ctx context.Context, model, system, instruction string, photo []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: system},
				{Text: instruction},
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(photo),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      temperature,
			ResponseMimeType: "application/json",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", vision.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", vision.ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", vision.ErrMalformedOutput, err)
	}
	if parsed.Error != nil {
		return nil, classifyStatus(parsed.Error.Code, body)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: response has no candidates", vision.ErrMalformedOutput)
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, fmt.Errorf("%w: empty candidate text", vision.ErrMalformedOutput)
	}
	return []byte(out), nil
}

func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: gemini status %d", vision.ErrQuotaExhausted, code)
	case code >= 500:
		return fmt.Errorf("%w: gemini status %d", vision.ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: gemini status %d: %s", vision.ErrUnavailable, code, truncate(body, 200))
	}
}

func systemPrompt(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return vision.DefaultSystemPrompt
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}

var _ vision.Client = (*Client)(nil)
