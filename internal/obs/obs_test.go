package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithVisitorID(ctx, "visitor-9")
	LogEvent(ctx, "session.sign_in", map[string]any{"user_id": "u-1"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["event"] != "session.sign_in" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" || entry["visitor_id"] != "visitor-9" {
		t.Fatalf("context ids missing: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["user_id"] != "u-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogError(t *testing.T) {
	buf := captureLog(t)

	LogError(context.Background(), "profile.fetch", errors.New("connection refused"), nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "error" || entry["error"] != "connection refused" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatalf("request id should be omitted without context: %v", entry)
	}
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	var seen string
	r.Get("/api/events/{id}/ics", func(w http.ResponseWriter, r *http.Request) {
		seen = RoutePattern(r)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/42/ics", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status not passed through: %d", rec.Code)
	}
	if seen != "/api/events/{id}/ics" {
		t.Fatalf("unexpected pattern: %q", seen)
	}

	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Fatalf("expected unmatched outside chi, got %q", got)
	}
}
