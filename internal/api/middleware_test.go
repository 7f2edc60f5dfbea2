package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)

	token, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	username, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if username != "alice" {
		t.Fatalf("expected username alice, got %q", username)
	}
}

func TestTokenManagerRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue("alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := NewTokenManager("secret-b", time.Hour).Validate(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestTokenManagerRejectsExpiredToken(t *testing.T) {
	token, err := NewTokenManager("test-secret", -time.Minute).Issue("alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := NewTokenManager("test-secret", -time.Minute).Validate(token); err == nil {
		t.Fatal("expected validation to fail for expired token")
	}
}

func TestSessionAuthMiddleware(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	var seenUsername string
	handler := SessionAuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUsername, _ = GetSessionUsername(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "malformed header", header: token, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && seenUsername != "alice" {
				t.Fatalf("expected username on context, got %q", seenUsername)
			}
		})
	}
}
