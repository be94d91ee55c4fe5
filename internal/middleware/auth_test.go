package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTriggerAuth_WithValidToken(t *testing.T) {
	m := NewTriggerAuth("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		caller, ok := GetCallerFromContext(r.Context())
		if !ok {
			t.Fatalf("caller not in context")
		}
		if caller != "cloud.scheduler" {
			t.Fatalf("caller from context = %q, want cloud.scheduler", caller)
		}
	})

	r := httptest.NewRequest(http.MethodPost, "/internal", nil)
	r.Header.Set(TriggerTokenHeader, m.SignToken("cloud.scheduler"))

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestTriggerAuth_RejectsInvalidTokens(t *testing.T) {
	m := NewTriggerAuth("test-secret")
	other := NewTriggerAuth("other-secret")

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "no signature", token: "scheduler"},
		{name: "empty caller", token: ".abcdef"},
		{name: "empty signature", token: "scheduler."},
		{name: "not hex", token: "scheduler.zzzz"},
		{name: "signed with other secret", token: other.SignToken("scheduler")},
		{name: "caller swapped", token: "admin." + m.SignToken("scheduler")[len("scheduler."):]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/internal", nil)
			if tt.token != "" {
				r.Header.Set(TriggerTokenHeader, tt.token)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestNewTriggerAuth_EmptySecretRejectsGuessedTokens(t *testing.T) {
	a := NewTriggerAuth("")
	b := NewTriggerAuth("")

	if _, ok := a.parseToken(b.SignToken("scheduler")); ok {
		t.Fatalf("token signed with a different random key must be rejected")
	}
	if _, ok := a.parseToken(a.SignToken("scheduler")); !ok {
		t.Fatalf("token signed with the same key must be accepted")
	}
}
