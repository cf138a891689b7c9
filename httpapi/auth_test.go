package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenIssuer_IssueAndVerifyRoundTrip(t *testing.T) {
	ti := NewTokenIssuer([]byte("test-secret"))
	tok, err := ti.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := ti.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("expected user-42, got %q", userID)
	}
}

func TestTokenIssuer_VerifyRejectsWrongKey(t *testing.T) {
	issuer := NewTokenIssuer([]byte("key-a"))
	tok, _ := issuer.Issue("user-1")

	wrongIssuer := NewTokenIssuer([]byte("key-b"))
	if _, err := wrongIssuer.Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRequireAuth_RejectsMissingBearer(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"))
	handler := ti.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a valid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/quota/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_AttachesUserIDFromValidToken(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"))
	tok, _ := ti.Issue("user-7")

	var gotUserID string
	handler := ti.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = userFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/quota/status", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != "user-7" {
		t.Fatalf("expected user-7, got %q", gotUserID)
	}
}
