package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestJSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBudget, Output: &buf})
	l.Info("hello", FieldUserID, "u1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentBudget || rec[FieldUserID] != "u1" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %s", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		}),
	))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Fatalf("request id missing: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected a fallback logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/budget", nil)

	sl.LogHTTPEnd(context.Background(), r, 404, 3, "1.2.3.4")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("4xx should log at warn: %s", buf.String())
	}
	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentStorage, OpUpdate, nil)
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "component=storage") {
		t.Fatalf("unexpected error log: %s", out)
	}
}
