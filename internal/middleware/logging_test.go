// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// captureLogs routes the default logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggerRecordsRequest(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantLevel string
	}{
		{"deck list", http.MethodGet, "/api/decks", http.StatusOK, "INFO"},
		{"missing deck", http.MethodGet, "/api/decks/7", http.StatusNotFound, "INFO"},
		{"ai failure", http.MethodPost, "/api/editor/7/theme", http.StatusBadGateway, "WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			handler := chimw.RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}

			var entry map[string]any
			if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
				t.Fatalf("decode log line %q: %v", logs.String(), err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level: got %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["method"] != tt.method || entry["path"] != tt.path {
				t.Errorf("request: got %v %v", entry["method"], entry["path"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status field: got %v", entry["status"])
			}
			if id, _ := entry["request_id"].(string); id == "" {
				t.Error("request_id missing from log line")
			}
		})
	}
}

func TestLoggerImplicitOK(t *testing.T) {
	logs := captureLogs(t)
	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Acme\n"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/decks/7/export.md", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "# Acme\n" {
		t.Errorf("response: %d %q", rr.Code, rr.Body.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status field: got %v, want 200", entry["status"])
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	rw.Write([]byte(`{"id":"7"}`))

	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode: got %d, want 201", rw.statusCode)
	}
}

// Slow editor endpoints extend their write deadline through
// http.ResponseController, which must see through the logging wrapper.
func TestLoggerAllowsWriteDeadline(t *testing.T) {
	captureLogs(t)
	errCh := make(chan error, 1)
	srv := httptest.NewServer(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errCh <- http.NewResponseController(w).SetWriteDeadline(time.Now().Add(time.Minute))
		w.WriteHeader(http.StatusNoContent)
	})))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/editor/7/theme", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	if err := <-errCh; err != nil {
		t.Errorf("SetWriteDeadline through Logger: %v", err)
	}
}
