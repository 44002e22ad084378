package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"defectmaster-backend/internal/shared/telemetry"
)

// ModelConfig names the models and system prompts for the two stages, plus a
// version string operators can bump to track prompt rollouts.
type ModelConfig struct {
	PromptVersion   string
	RelevanceModel  string
	AnalysisModel   string
	RelevancePrompt string
	AnalysisPrompt  string
}

// Resolver yields the current model configuration. Implementations may hit
// the network, so calls carry a context.
type Resolver interface {
	Resolve(ctx context.Context) (ModelConfig, error)
}

// StaticResolver always returns the same configuration.
type StaticResolver struct {
	Config ModelConfig
}

func (r StaticResolver) Resolve(ctx context.Context) (ModelConfig, error) {
	return r.Config, nil
}

// DocResolver fetches a plain-text settings document over HTTP and parses it
// with ParseSettingsDoc. Missing sections fall back to the defaults.
type DocResolver struct {
	url        string
	defaults   ModelConfig
	httpClient *http.Client
}

// NewDocResolver constructs a DocResolver. A nil httpClient gets a 10s
// timeout client.
func NewDocResolver(url string, defaults ModelConfig, httpClient *http.Client) *DocResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DocResolver{url: url, defaults: defaults, httpClient: httpClient}
}

func (r *DocResolver) Resolve(ctx context.Context) (ModelConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("settings doc request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("settings doc fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ModelConfig{}, fmt.Errorf("settings doc fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ModelConfig{}, fmt.Errorf("settings doc read: %w", err)
	}
	return ParseSettingsDoc(string(body), r.defaults), nil
}

// ParseSettingsDoc parses the operator settings document:
//
//	0.0.1
//	---
//	RELEVANCE_MODEL: gemini-2.5-flash
//	ANALYSIS_MODEL: gemini-2.5-pro
//	---
//	RELEVANCE_PROMPT:
//	...text...
//	---
//	ANALYSIS_PROMPT:
//	...text...
//	---
//
// Sections may appear in any order after the version line; anything missing
// keeps its default.
func ParseSettingsDoc(content string, defaults ModelConfig) ModelConfig {
	out := defaults

	if idx := strings.Index(content, "---"); idx >= 0 {
		head := strings.TrimSpace(content[:idx])
		if head != "" {
			out.PromptVersion = strings.TrimSpace(strings.SplitN(head, "\n", 2)[0])
		}
		content = content[idx+len("---"):]
	}

	for _, section := range strings.Split(content, "---") {
		section = strings.TrimSpace(section)
		switch {
		case section == "":
		case strings.Contains(section, "RELEVANCE_MODEL:"):
			for _, line := range strings.Split(section, "\n") {
				line = strings.TrimSpace(line)
				if v, ok := strings.CutPrefix(line, "RELEVANCE_MODEL:"); ok {
					if v = strings.TrimSpace(v); v != "" {
						out.RelevanceModel = v
					}
				} else if v, ok := strings.CutPrefix(line, "ANALYSIS_MODEL:"); ok {
					if v = strings.TrimSpace(v); v != "" {
						out.AnalysisModel = v
					}
				}
			}
		case strings.HasPrefix(section, "RELEVANCE_PROMPT:"):
			if v := strings.TrimSpace(strings.TrimPrefix(section, "RELEVANCE_PROMPT:")); v != "" {
				out.RelevancePrompt = v
			}
		case strings.HasPrefix(section, "ANALYSIS_PROMPT:"):
			if v := strings.TrimSpace(strings.TrimPrefix(section, "ANALYSIS_PROMPT:")); v != "" {
				out.AnalysisPrompt = v
			}
		}
	}
	return out
}

// CachedResolver memoizes another resolver for a TTL. When a refresh fails
// and a previous value exists, the stale value is served so a flaky settings
// source never blocks analyses.
type CachedResolver struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	cached    ModelConfig
	hasCached bool
	expires   time.Time
}

// NewCachedResolver wraps inner with a TTL cache. A nil now uses time.Now.
func NewCachedResolver(inner Resolver, ttl time.Duration, now func() time.Time) *CachedResolver {
	if now == nil {
		now = time.Now
	}
	return &CachedResolver{inner: inner, ttl: ttl, now: now}
}

func (r *CachedResolver) Resolve(ctx context.Context) (ModelConfig, error) {
	r.mu.Lock()
	if r.hasCached && r.now().Before(r.expires) {
		cfg := r.cached
		r.mu.Unlock()
		return cfg, nil
	}
	r.mu.Unlock()

	cfg, err := r.inner.Resolve(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.hasCached {
			telemetry.Warn("settings refresh failed, serving cached config", map[string]any{
				"error":          err.Error(),
				"prompt_version": r.cached.PromptVersion,
			})
			return r.cached, nil
		}
		return ModelConfig{}, err
	}
	r.cached = cfg
	r.hasCached = true
	r.expires = r.now().Add(r.ttl)
	return cfg, nil
}

// Invalidate drops the cached value so the next Resolve refetches.
func (r *CachedResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasCached = false
	r.expires = time.Time{}
}
