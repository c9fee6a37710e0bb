package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/model"
	"github.com/eralens/eralens/internal/store"
)

func adminIdentity() *model.Identity {
	return &model.Identity{UserID: "auth0|admin", Email: "admin@example.com", IsAdmin: true}
}

func seedAccounts(t *testing.T, s store.AccountStore, specs ...[3]string) {
	t.Helper()
	for _, spec := range specs {
		if _, err := s.GetOrCreate(context.Background(), spec[0], spec[1], 3); err != nil {
			t.Fatalf("seed %s: %v", spec[0], err)
		}
	}
}

func TestListUsers(t *testing.T) {
	accounts := store.NewMemory()
	seedAccounts(t, accounts, [3]string{"auth0|u1", "alice@example.com"})
	time.Sleep(5 * time.Millisecond)
	seedAccounts(t, accounts, [3]string{"auth0|u2", "bob@example.com"})

	h := NewAdminHandler(accounts, nil, discardLogger())

	req := requestWithIdentity("GET", "/api/v1/admin/users", adminIdentity(), nil)
	rec := httptest.NewRecorder()
	h.ListUsers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp UserListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Users) != 2 {
		t.Fatalf("expected 2 users, got total=%d len=%d", resp.Total, len(resp.Users))
	}
	// Most recently seen first.
	if resp.Users[0].ID != "auth0|u2" {
		t.Errorf("expected auth0|u2 first, got %s", resp.Users[0].ID)
	}
}

func TestAdjustCredits_SetAndAdd(t *testing.T) {
	accounts := store.NewMemory()
	seedAccounts(t, accounts, [3]string{"auth0|u1", "alice@example.com"})

	h := NewAdminHandler(accounts, nil, discardLogger())

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/v1/admin/credits", strings.NewReader(body))
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), adminIdentity()))
		rec := httptest.NewRecorder()
		h.AdjustCredits(rec, req)
		return rec
	}

	// Absolute set.
	rec := do(`{"email":"alice@example.com","credits":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp adjustCreditsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Credits != 10 {
		t.Errorf("set: expected balance 10, got %d", resp.Credits)
	}

	// Increment.
	rec = do(`{"email":"alice@example.com","amount":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Credits != 15 {
		t.Errorf("add: expected balance 15, got %d", resp.Credits)
	}
}

func TestAdjustCredits_BadRequests(t *testing.T) {
	accounts := store.NewMemory()
	seedAccounts(t, accounts, [3]string{"auth0|u1", "alice@example.com"})

	h := NewAdminHandler(accounts, nil, discardLogger())

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"not json", `nope`, http.StatusBadRequest},
		{"non-numeric credits", `{"email":"alice@example.com","credits":"ten"}`, http.StatusBadRequest},
		{"missing email", `{"credits":5}`, http.StatusBadRequest},
		{"neither field", `{"email":"alice@example.com"}`, http.StatusBadRequest},
		{"both fields", `{"email":"alice@example.com","credits":5,"amount":5}`, http.StatusBadRequest},
		{"negative set", `{"email":"alice@example.com","credits":-1}`, http.StatusBadRequest},
		{"zero add", `{"email":"alice@example.com","amount":0}`, http.StatusBadRequest},
		{"unknown email", `{"email":"ghost@example.com","credits":5}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/admin/credits", strings.NewReader(tt.body))
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), adminIdentity()))
			rec := httptest.NewRecorder()
			h.AdjustCredits(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	// Balance untouched by the failed requests.
	acct, err := accounts.SetCredits(context.Background(), "alice@example.com", 3)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if acct.Credits != 3 {
		t.Errorf("expected reset balance 3, got %d", acct.Credits)
	}
}
