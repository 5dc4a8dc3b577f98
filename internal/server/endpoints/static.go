package endpoints

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/web"
)

// StaticEndpoint serves the embedded page and its assets. It is a
// catch-all, so it must be registered last.
type StaticEndpoint struct{}

var _ api.Endpoint = (*StaticEndpoint)(nil)

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{path...}", e.handler
}

func (e *StaticEndpoint) RequiresInit() bool { return false }

func (e *StaticEndpoint) Command(_ func() string) *cobra.Command { return nil }

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")

	// Unknown API routes stay JSON.
	if name == "api" || strings.HasPrefix(name, "api/") {
		writeError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
		return
	}

	assets, err := web.Assets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page not available")
		return
	}
	if name != "" && name != web.IndexFile {
		if info, err := fs.Stat(assets, name); err == nil && !info.IsDir() {
			http.ServeFileFS(w, r, assets, name)
			return
		}
	}

	page, err := web.Index()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page not available")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(page)
}
