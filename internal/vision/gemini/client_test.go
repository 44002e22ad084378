package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"defectmaster-backend/internal/vision"
)

func testResolver() vision.Resolver {
	return vision.StaticResolver{Config: vision.ModelConfig{
		RelevanceModel: "gemini-2.5-flash",
		AnalysisModel:  "gemini-2.5-pro",
	}}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient("test-key", testResolver(), 5*time.Second, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.baseURL = srv.URL
	client.httpClient = srv.Client()
	return client, srv
}

func candidateResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	out, _ := json.Marshal(payload)
	return string(out)
}

func TestCheckRelevanceRequestShape(t *testing.T) {
	var gotPath string
	var gotReq generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(candidateResponse(`{"is_relevant": true, "joke": null}`)))
	})

	res, err := client.CheckRelevance(context.Background(), []byte{0xff, 0xd8}, "ЖК Пионер")
	if err != nil {
		t.Fatalf("check relevance: %v", err)
	}
	if !res.IsRelevant {
		t.Fatal("expected relevant")
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotReq.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("response mime = %q", gotReq.GenerationConfig.ResponseMimeType)
	}
	if gotReq.GenerationConfig.Temperature != 0.4 {
		t.Fatalf("temperature = %v", gotReq.GenerationConfig.Temperature)
	}
	parts := gotReq.Contents[0].Parts
	if len(parts) != 3 || parts[2].InlineData == nil || parts[2].InlineData.MimeType != "image/jpeg" {
		t.Fatalf("unexpected parts %+v", parts)
	}
}

func TestAnalyzeDefectsUsesAnalysisModel(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(candidateResponse(`{"is_relevant": true, "items": [{"defect": "Трещина", "location": "Стена", "criticality": "Критический", "cause": "", "norm": "СП 70.13330", "recommendation": "Устранить"}], "expert_summary": "Одно замечание."}`)))
	})

	report, err := client.AnalyzeDefects(context.Background(), []byte{0xff, 0xd8}, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if gotPath != "/models/gemini-2.5-pro:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if len(report.Items) != 1 || report.Items[0].Criticality != vision.TierCritical {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestGenerateClassifies429AsQuota(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.CheckRelevance(context.Background(), []byte{1}, "")
	if !errors.Is(err, vision.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestGenerateClassifies5xxAsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.AnalyzeDefects(context.Background(), []byte{1}, "")
	if !errors.Is(err, vision.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateMalformedCandidate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(candidateResponse("this is not json")))
	})
	_, err := client.CheckRelevance(context.Background(), []byte{1}, "")
	if !errors.Is(err, vision.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})
	_, err := client.CheckRelevance(context.Background(), []byte{1}, "")
	if !errors.Is(err, vision.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}
