package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/rs/zerolog"
)

func TestContextLogger_TagsRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "client supplied id", header: "req-123"},
		{name: "generated id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log := logger.FromContext(r.Context())
				log.Info().Msg("handled")
			})
			handler := RequestID(ContextLogger(zerolog.New(&buf))(inner))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line is not JSON: %q", buf.String())
			}
			want := rec.Header().Get("X-Request-ID")
			if want == "" || entry["request_id"] != want {
				t.Errorf("request_id = %v, want %q", entry["request_id"], want)
			}
			if tt.header != "" && want != tt.header {
				t.Errorf("X-Request-ID = %q, want %q", want, tt.header)
			}
		})
	}
}

func TestLogger_SeesInnerRequestID(t *testing.T) {
	var buf bytes.Buffer
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Logger(zerolog.New(&buf))(RequestID(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("X-Request-ID", "req-9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if entry["request_id"] != "req-9" {
		t.Errorf("request_id = %v, want req-9", entry["request_id"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("status = %v, want 418", entry["status"])
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID = %q, want empty", id)
	}
}
