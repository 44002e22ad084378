package vision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testDefaults = ModelConfig{
	PromptVersion:   "unknown",
	RelevanceModel:  "gemini-2.5-flash",
	AnalysisModel:   "gemini-2.5-pro",
	RelevancePrompt: DefaultSystemPrompt,
	AnalysisPrompt:  DefaultSystemPrompt,
}

func TestParseSettingsDocFull(t *testing.T) {
	doc := `0.0.3
---
RELEVANCE_MODEL: gemini-2.5-flash-lite
ANALYSIS_MODEL: gemini-2.5-pro
---
RELEVANCE_PROMPT:
Custom relevance instructions.
---
ANALYSIS_PROMPT:
Custom analysis instructions.
---`
	cfg := ParseSettingsDoc(doc, testDefaults)
	if cfg.PromptVersion != "0.0.3" {
		t.Fatalf("version = %q", cfg.PromptVersion)
	}
	if cfg.RelevanceModel != "gemini-2.5-flash-lite" {
		t.Fatalf("relevance model = %q", cfg.RelevanceModel)
	}
	if cfg.AnalysisModel != "gemini-2.5-pro" {
		t.Fatalf("analysis model = %q", cfg.AnalysisModel)
	}
	if cfg.RelevancePrompt != "Custom relevance instructions." {
		t.Fatalf("relevance prompt = %q", cfg.RelevancePrompt)
	}
	if cfg.AnalysisPrompt != "Custom analysis instructions." {
		t.Fatalf("analysis prompt = %q", cfg.AnalysisPrompt)
	}
}

func TestParseSettingsDocMissingSectionsKeepDefaults(t *testing.T) {
	cfg := ParseSettingsDoc("0.1.0\n---\nRELEVANCE_MODEL: custom-flash\n---", testDefaults)
	if cfg.RelevanceModel != "custom-flash" {
		t.Fatalf("relevance model = %q", cfg.RelevanceModel)
	}
	if cfg.AnalysisModel != testDefaults.AnalysisModel {
		t.Fatalf("analysis model should stay default, got %q", cfg.AnalysisModel)
	}
	if cfg.RelevancePrompt != DefaultSystemPrompt {
		t.Fatal("relevance prompt should stay default")
	}
}

func TestParseSettingsDocGarbage(t *testing.T) {
	cfg := ParseSettingsDoc("random text without any structure", testDefaults)
	if cfg != testDefaults {
		t.Fatalf("garbage doc should return defaults, got %+v", cfg)
	}
}

type countingResolver struct {
	calls int
	cfg   ModelConfig
	err   error
}

func (r *countingResolver) Resolve(ctx context.Context) (ModelConfig, error) {
	r.calls++
	if r.err != nil {
		return ModelConfig{}, r.err
	}
	return r.cfg, nil
}

func TestCachedResolverServesWithinTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	inner := &countingResolver{cfg: ModelConfig{PromptVersion: "v1"}}
	cached := NewCachedResolver(inner, 5*time.Minute, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		cfg, err := cached.Resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if cfg.PromptVersion != "v1" {
			t.Fatalf("resolve %d: version = %q", i, cfg.PromptVersion)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver called %d times, want 1", inner.calls)
	}

	now = now.Add(6 * time.Minute)
	if _, err := cached.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve after expiry: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner resolver called %d times after expiry, want 2", inner.calls)
	}
}

func TestCachedResolverServesStaleOnError(t *testing.T) {
	now := time.Unix(1700000000, 0)
	inner := &countingResolver{cfg: ModelConfig{PromptVersion: "v1"}}
	cached := NewCachedResolver(inner, time.Minute, func() time.Time { return now })

	if _, err := cached.Resolve(context.Background()); err != nil {
		t.Fatalf("warmup resolve: %v", err)
	}

	now = now.Add(2 * time.Minute)
	inner.err = errors.New("doc host down")
	cfg, err := cached.Resolve(context.Background())
	if err != nil {
		t.Fatalf("expected stale value, got error %v", err)
	}
	if cfg.PromptVersion != "v1" {
		t.Fatalf("stale version = %q", cfg.PromptVersion)
	}
}

func TestCachedResolverPropagatesColdError(t *testing.T) {
	inner := &countingResolver{err: errors.New("doc host down")}
	cached := NewCachedResolver(inner, time.Minute, nil)
	if _, err := cached.Resolve(context.Background()); err == nil {
		t.Fatal("expected error with no cached value")
	}
}

func TestDocResolverFetchesAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1.2.0\n---\nRELEVANCE_MODEL: doc-flash\nANALYSIS_MODEL: doc-pro\n---"))
	}))
	defer srv.Close()

	resolver := NewDocResolver(srv.URL, testDefaults, srv.Client())
	cfg, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.PromptVersion != "1.2.0" || cfg.RelevanceModel != "doc-flash" || cfg.AnalysisModel != "doc-pro" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestDocResolverNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	resolver := NewDocResolver(srv.URL, testDefaults, srv.Client())
	if _, err := resolver.Resolve(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
