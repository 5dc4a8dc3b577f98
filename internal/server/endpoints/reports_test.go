package endpoints

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jackzampolin/radreport/internal/dialogue"
	"github.com/jackzampolin/radreport/internal/present"
	"github.com/jackzampolin/radreport/internal/structurer"
	"github.com/jackzampolin/radreport/internal/svcctx"
)

func TestStructureStatus(t *testing.T) {
	clientTimeout := &url.Error{Op: "Post", URL: "https://api.openai.com/v1/chat/completions", Err: context.DeadlineExceeded}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty report", fmt.Errorf("structure report: %w", dialogue.ErrEmptyReport), http.StatusBadRequest},
		{"no provider", structurer.ErrNoProvider, http.StatusServiceUnavailable},
		{"retries exhausted", &dialogue.RemoteError{Attempts: 10, Err: errors.New("502 bad gateway")}, http.StatusBadGateway},
		{"retries exhausted on timeouts", &dialogue.RemoteError{Attempts: 10, Err: clientTimeout}, http.StatusBadGateway},
		{"request cancelled", fmt.Errorf("structure report: %w", context.Canceled), http.StatusServiceUnavailable},
		{"request deadline", fmt.Errorf("structure report: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := structureStatus(tt.err); got != tt.want {
				t.Errorf("structureStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(status int)    { w.status = status }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteReport_LogsRenderFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/reports/structure?format=csv", nil)
	req = req.WithContext(svcctx.WithServices(req.Context(), &svcctx.Services{Logger: logger}))

	w := &brokenWriter{header: http.Header{}}
	report := present.Report{
		Kind:      dialogue.KindStructured,
		Data:      []byte(`{"FINDINGS": {"LIVER": "normal"}}`),
		SessionID: "s-1",
	}
	writeReport(w, req, present.FormatCSV, report)

	if w.status != http.StatusOK {
		t.Errorf("status = %d, want 200", w.status)
	}
	out := logs.String()
	if !strings.Contains(out, "write structured report failed") || !strings.Contains(out, "session_id=s-1") {
		t.Errorf("render failure not logged: %q", out)
	}
}
