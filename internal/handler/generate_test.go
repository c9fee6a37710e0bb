package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/model"
	"github.com/eralens/eralens/internal/service"
	"github.com/eralens/eralens/internal/store"
	"github.com/eralens/eralens/internal/upstream"
)

const generateBody = `{"contents":[{"parts":[` +
	`{"text":"make this photo look like 1972"},` +
	`{"inline_data":{"mime_type":"image/png","data":"aGVsbG8="}}]}]}`

type stubUpstream struct {
	result *upstream.Result
	err    error
}

func (s *stubUpstream) GenerateContent(ctx context.Context, model string, body []byte) (*upstream.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// generateRouter wires the handler into a chi router so the model URL
// parameter is populated the same way as in production.
func generateRouter(h *GenerateHandler, id *model.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.ContextWithIdentity(req.Context(), id)))
		})
	})
	r.Post("/api/v1/models/{model}:generateContent", h.Generate)
	return r
}

func newGenerateFixture(t *testing.T, credits int, up service.UpstreamCaller) (http.Handler, store.AccountStore) {
	t.Helper()
	accounts := store.NewMemory()
	if _, err := accounts.GetOrCreate(context.Background(), "auth0|u1", "alice@example.com", credits); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	svc := service.NewGenerateService(accounts, up, nil, discardLogger())
	h := NewGenerateHandler(svc, discardLogger())
	router := generateRouter(h, &model.Identity{UserID: "auth0|u1", Email: "alice@example.com"})
	return router, accounts
}

func TestGenerateEndpoint_RelaysSuccess(t *testing.T) {
	router, _ := newGenerateFixture(t, 3, &stubUpstream{result: &upstream.Result{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"candidates":[{"content":{}}]}`),
	}})

	req := httptest.NewRequest("POST", "/api/v1/models/gemini-2.0-flash:generateContent", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Generation-Id") == "" {
		t.Error("expected X-Generation-Id header")
	}
	if rec.Body.String() != `{"candidates":[{"content":{}}]}` {
		t.Errorf("unexpected relayed body %q", rec.Body.String())
	}
}

func TestGenerateEndpoint_OutOfCredits(t *testing.T) {
	router, _ := newGenerateFixture(t, 0, &stubUpstream{result: &upstream.Result{StatusCode: http.StatusOK}})

	req := httptest.NewRequest("POST", "/api/v1/models/gemini-2.0-flash:generateContent", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "You are out of credits.") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestGenerateEndpoint_InvalidPayload(t *testing.T) {
	router, accounts := newGenerateFixture(t, 3, &stubUpstream{result: &upstream.Result{StatusCode: http.StatusOK}})

	req := httptest.NewRequest("POST", "/api/v1/models/gemini-2.0-flash:generateContent", strings.NewReader(`{"contents":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	acct, err := accounts.GetOrCreate(context.Background(), "auth0|u1", "alice@example.com", 0)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if acct.Credits != 3 {
		t.Errorf("expected balance untouched at 3, got %d", acct.Credits)
	}
}

func TestGenerateEndpoint_RelaysUpstreamFailureWithoutRefund(t *testing.T) {
	router, accounts := newGenerateFixture(t, 1, &stubUpstream{result: &upstream.Result{
		StatusCode:  http.StatusServiceUnavailable,
		ContentType: "application/json",
		Body:        []byte(`{"error":{"message":"overloaded"}}`),
	}})

	req := httptest.NewRequest("POST", "/api/v1/models/gemini-2.0-flash:generateContent", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected relayed 503, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":{"message":"overloaded"}}` {
		t.Errorf("unexpected relayed body %q", rec.Body.String())
	}

	acct, err := accounts.GetOrCreate(context.Background(), "auth0|u1", "alice@example.com", 0)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if acct.Credits != 0 {
		t.Errorf("expected credit spent with no refund, balance %d", acct.Credits)
	}
}

func TestGenerateEndpoint_UpstreamTimeout(t *testing.T) {
	router, _ := newGenerateFixture(t, 1, &stubUpstream{err: upstream.ErrTimeout})

	req := httptest.NewRequest("POST", "/api/v1/models/gemini-2.0-flash:generateContent", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}
