package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one server operation: an HTTP route plus the CLI command
// that calls it over HTTP.
type Endpoint interface {
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the route is gated on a usable LLM client.
	RequiresInit() bool

	// Command builds the CLI form of the endpoint, or nil when it has none.
	// getServerURL is read when the command runs, after flags are parsed.
	Command(getServerURL func() string) *cobra.Command
}

// Middleware wraps a handler.
type Middleware func(http.HandlerFunc) http.HandlerFunc
