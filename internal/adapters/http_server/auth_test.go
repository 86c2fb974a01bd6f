package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuth_IssueParse(t *testing.T) {
	a, err := NewAuth("s", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok, exp, err := a.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	user, err := a.Parse(tok)
	if err != nil || user != "alice" {
		t.Fatalf("Parse = %q, %v", user, err)
	}

	other, _ := NewAuth("different", time.Hour)
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestAuth_Expired(t *testing.T) {
	a, _ := NewAuth("s", time.Minute)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := a.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAuth_RequireSetsUser(t *testing.T) {
	a, _ := NewAuth("s", time.Hour)
	tok, _, _ := a.Issue("bob")

	var got string
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || got != "bob" {
		t.Fatalf("code=%d user=%q", rec.Code, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", rec.Code)
	}
}

func TestNewAuth_RequiresSecret(t *testing.T) {
	if _, err := NewAuth("", time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
