package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

func TestContextWithLogger_KeepsExisting(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("Expected a request ID")
	}
	ctx2, rlog2 := ContextWithLogger(ctx)
	if ctx2 != ctx || rlog2 != rlog {
		t.Fatal("Expected the existing logger to be reused")
	}
}

func TestSerializeLoggerContext(t *testing.T) {
	if s := string(SerializeLoggerContext(context.Background())); s != "{}" {
		t.Fatalf("Expected {}, got %s", s)
	}
	ctx, _ := ContextWithLoggerIdentity(context.Background(), "admin-1")
	var v contextLoggerValues
	if err := json.Unmarshal(SerializeLoggerContext(ctx), &v); err != nil {
		t.Fatal(err)
	}
	if v.Identity != "admin-1" || v.RequestID != RequestIDFromContext(ctx) {
		t.Fatalf("Unexpected values %+v", v)
	}
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)
	var seen string
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if seen == "" || rec.Header().Get("X-Request-Id") != seen {
		t.Fatalf("Expected request ID in context and header, got %q and %q", seen, rec.Header().Get("X-Request-Id"))
	}
}
