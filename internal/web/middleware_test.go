package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var gotHeader string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = w.Header().Get("X-Request-ID")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotHeader == "" {
		t.Error("RequestID did not set X-Request-ID header")
	}
}

func TestRequestID_ReusesExisting(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want %q", got, "fixed-id")
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestOwnerToken(t *testing.T) {
	var gotOwner string
	handler := OwnerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = Owner(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotOwner != "alice" {
		t.Errorf("Owner() = %q, want %q", gotOwner, "alice")
	}
}

func TestOwnerToken_Anonymous(t *testing.T) {
	var gotOwner string
	handler := OwnerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = Owner(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotOwner != "" {
		t.Errorf("Owner() = %q, want empty for anonymous request", gotOwner)
	}
}
