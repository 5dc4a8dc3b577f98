package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			http.Error(w, `{"error":"bad content type"}`, http.StatusBadRequest)
			return
		}
		io.Copy(w, r.Body)
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"missing file"}`))
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		json.NewEncoder(w).Encode(map[string]string{"name": hdr.Filename, "text": string(data)})
	})
	mux.HandleFunc("GET /fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"no LLM provider configured"}`))
	})
	mux.HandleFunc("GET /plain", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL)

	t.Run("get", func(t *testing.T) {
		var got map[string]string
		if err := c.Get(ctx, "/ok", &got); err != nil {
			t.Fatal(err)
		}
		if got["status"] != "ok" {
			t.Errorf("status = %q", got["status"])
		}
	})

	t.Run("post", func(t *testing.T) {
		var got map[string]string
		if err := c.Post(ctx, "/echo", map[string]string{"text": "report"}, &got); err != nil {
			t.Fatal(err)
		}
		if got["text"] != "report" {
			t.Errorf("text = %q", got["text"])
		}
	})

	t.Run("post file", func(t *testing.T) {
		var got map[string]string
		if err := c.PostFile(ctx, "/upload", "file", "report.txt", strings.NewReader("FINDINGS: none"), &got); err != nil {
			t.Fatal(err)
		}
		if got["name"] != "report.txt" || got["text"] != "FINDINGS: none" {
			t.Errorf("upload echoed %v", got)
		}
	})

	t.Run("error body", func(t *testing.T) {
		err := c.Get(ctx, "/fail", nil)
		if err == nil || err.Error() != "server error (503): no LLM provider configured" {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("plain error body", func(t *testing.T) {
		err := c.Get(ctx, "/plain", nil)
		if err == nil || !strings.Contains(err.Error(), "(500): boom") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestOutputToFile(t *testing.T) {
	t.Cleanup(func() { SetOutputFormat("yaml") })
	SetOutputFormat("yaml")
	dir := t.TempDir()
	data := map[string]any{"swagger": "2.0"}

	tests := []struct {
		name string
		want string
	}{
		{"doc.json", "{\n  \"swagger\": \"2.0\"\n}\n"},
		{"doc.yml", "swagger: \"2.0\"\n"},
		{"doc.out", "swagger: \"2.0\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := OutputToFile(data, path); err != nil {
				t.Fatal(err)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeEndpoint struct {
	method, path string
	init         bool
	command      bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.init }

func (e *fakeEndpoint) Command(getServerURL func() string) *cobra.Command {
	if !e.command {
		return nil
	}
	return &cobra.Command{Use: strings.Trim(e.path, "/")}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		&fakeEndpoint{method: "GET", path: "/open", command: true},
		&fakeEndpoint{method: "POST", path: "/gated", init: true},
	)

	blocked := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
	mux := http.NewServeMux()
	r.Mount(mux, blocked)

	for path, want := range map[string]int{"/open": http.StatusNoContent, "/gated": http.StatusServiceUnavailable} {
		method := http.MethodGet
		if path == "/gated" {
			method = http.MethodPost
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		if rec.Code != want {
			t.Errorf("%s %s = %d, want %d", method, path, rec.Code, want)
		}
	}

	group := r.Group("api", "test", func() string { return "" })
	if n := len(group.Commands()); n != 1 {
		t.Fatalf("Group() added %d commands, want 1 (nil commands skipped)", n)
	}
	if got := group.Commands()[0].Use; got != "open" {
		t.Errorf("command = %q, want open", got)
	}

	t.Run("nil gate", func(t *testing.T) {
		mux := http.NewServeMux()
		r.Mount(mux, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gated", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("ungated POST /gated = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})
}
