package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/shared/server/middleware"
	"defectmaster-backend/internal/vision"
)

func newTestRouter(e *env) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	h := NewHandler(e.svc)
	api := r.Group("/api/v1")
	h.RegisterRoutes(api.Group("/analyses"))
	h.RegisterDefectRoutes(api.Group("/defects"))
	return r
}

func photoRequest(t *testing.T, userID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("photo", "wall.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	return req
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestSubmitHTTPRequiresIdentity(t *testing.T) {
	e := newEnv(t, relevantVision(), nil)
	r := newTestRouter(e)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, photoRequest(t, ""))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestSubmitHTTPBillable(t *testing.T) {
	e := newEnv(t, relevantVision(vision.DefectItem{
		Name:        "Трещина в стяжке",
		Criticality: vision.TierSignificant,
	}), nil)
	r := newTestRouter(e)
	register(t, e, "tg-1")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, photoRequest(t, "tg-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var outcome Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.Billable {
		t.Fatal("expected a billable outcome")
	}
	if outcome.Balance != 4 {
		t.Fatalf("expected balance 4, got %d", outcome.Balance)
	}
	if len(outcome.Defects) != 1 || outcome.Defects[0].Name != "Трещина в стяжке" {
		t.Fatalf("unexpected defects: %+v", outcome.Defects)
	}
}

func TestSubmitHTTPNoCreditsEnvelope(t *testing.T) {
	e := newEnv(t, relevantVision(), nil)
	r := newTestRouter(e)
	register(t, e, "tg-1")
	if _, err := e.ledger.Debit(context.Background(), "tg-1", 5); err != nil {
		t.Fatalf("drain balance: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, photoRequest(t, "tg-1"))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != ErrorCodeNoCredits {
		t.Fatalf("expected code %s, got %s", ErrorCodeNoCredits, envelope.Error.Code)
	}
}

func TestSubmitHTTPProviderQuotaEnvelope(t *testing.T) {
	e := newEnv(t, &fakeVision{
		relevance: vision.RelevanceResult{IsRelevant: true},
		reportErr: vision.ErrQuotaExhausted,
	}, nil)
	r := newTestRouter(e)
	register(t, e, "tg-1")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, photoRequest(t, "tg-1"))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != ErrorCodeQuotaExhausted {
		t.Fatalf("expected code %s, got %s", ErrorCodeQuotaExhausted, envelope.Error.Code)
	}

	user, err := e.ledger.Get(context.Background(), "tg-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Balance != 5 {
		t.Fatalf("balance = %d, want untouched 5", user.Balance)
	}
}

func TestDefectStatusHTTPWorkflow(t *testing.T) {
	e := newEnv(t, relevantVision(vision.DefectItem{Name: "Скол плитки"}), nil)
	r := newTestRouter(e)
	register(t, e, "tg-1")

	outcome, err := e.svc.Submit(context.Background(), SubmitInput{UserID: "tg-1", Photo: []byte{1}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defectID := outcome.Defects[0].ID

	patch := func(status string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"status": status})
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/defects/"+defectID+"/status", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "tg-1")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp
	}

	if resp := patch(DefectStatusFixed); resp.Code != http.StatusOK {
		t.Fatalf("open->fixed expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := patch(DefectStatusVerified); resp.Code != http.StatusOK {
		t.Fatalf("fixed->verified expected 200, got %d", resp.Code)
	}
	if resp := patch(DefectStatusOpen); resp.Code != http.StatusConflict {
		t.Fatalf("verified is terminal, expected 409, got %d", resp.Code)
	}
}

func TestGetHTTPNotFound(t *testing.T) {
	e := newEnv(t, relevantVision(), nil)
	r := newTestRouter(e)
	register(t, e, "tg-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil)
	req.Header.Set("X-User-Id", "tg-1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
