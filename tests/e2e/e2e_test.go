//go:build e2e

// End-to-end smoke test against a running server.
//
// Requires a server started with APP_ENV=development so the dev token
// bypass is active:
//
//	ERALENS_BASE_URL=http://localhost:8080 go test -tags e2e ./tests/e2e/
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const devToken = "dev-token"

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func doRequest(t *testing.T, client *http.Client, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, data
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("ERALENS_BASE_URL", "http://localhost:8080")
	client := newClient()

	t.Run("healthz", func(t *testing.T) {
		resp, _ := doRequest(t, client, "GET", baseURL+"/healthz", "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("unauthenticated user-data", func(t *testing.T) {
		resp, _ := doRequest(t, client, "GET", baseURL+"/api/v1/user-data", "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("dev token user-data", func(t *testing.T) {
		resp, body := doRequest(t, client, "GET", baseURL+"/api/v1/user-data", devToken, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}

		var data struct {
			IsAdmin bool `json:"isAdmin"`
			Credits int  `json:"credits"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			t.Fatalf("decode user-data: %v", err)
		}
		if data.Credits < 0 {
			t.Errorf("negative balance %d", data.Credits)
		}
	})

	t.Run("debug-info masks emails", func(t *testing.T) {
		resp, body := doRequest(t, client, "GET", baseURL+"/api/v1/debug-info", devToken, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if strings.Contains(string(body), "dev@example.com") {
			t.Errorf("debug-info leaked raw email: %s", body)
		}
	})

	t.Run("invalid generation payload", func(t *testing.T) {
		url := fmt.Sprintf("%s/api/v1/models/gemini-2.0-flash:generateContent", baseURL)
		resp, body := doRequest(t, client, "POST", url, devToken, `{"contents":[]}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty contents, got %d: %s", resp.StatusCode, body)
		}
	})

	t.Run("admin routes forbidden for non-admin", func(t *testing.T) {
		resp, body := doRequest(t, client, "GET", baseURL+"/api/v1/admin/users", devToken, "")
		// The dev identity may be configured as admin in some
		// environments; accept either outcome but never a silent 200
		// without a users payload.
		switch resp.StatusCode {
		case http.StatusForbidden:
		case http.StatusOK:
			if !strings.Contains(string(body), "users") {
				t.Errorf("admin listing missing users field: %s", body)
			}
		default:
			t.Fatalf("expected 200 or 403, got %d: %s", resp.StatusCode, body)
		}
	})
}
