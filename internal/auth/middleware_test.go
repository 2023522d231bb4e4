package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst-1:query_runner|query_reader")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Subject != "analyst-1" {
		t.Fatalf("Subject = %q", identity.Subject)
	}
	if !identity.HasRole("query_runner") || !identity.HasRole("query_reader") {
		t.Fatalf("Roles = %v", identity.Roles)
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpecs(t *testing.T) {
	for _, spec := range []string{
		"invalid",
		"k1:subject",
		"k1::query_reader",
		"k1:subject:",
		"k1:a:query_reader,k1:b:query_runner",
	} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("spec %q should fail to parse", spec)
		}
	}
}

func TestStaticAPIKeyValidatorEmptySpec(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("  ")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if _, ok := validator.Validate(context.Background(), "anything"); ok {
		t.Fatal("empty spec must reject every key")
	}
}

func TestMiddlewareRejectsWithEnvelope(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst-1:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/queries", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Error.Kind != "UNAUTHORIZED" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst-1:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Subject != "analyst-1" {
			t.Fatalf("Subject = %q", identity.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/queries", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst-1:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/queries", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}
