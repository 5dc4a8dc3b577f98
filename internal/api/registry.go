package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry is an ordered set of endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry returns a registry holding eps in order.
func NewRegistry(eps ...Endpoint) *Registry {
	r := &Registry{}
	r.Register(eps...)
	return r
}

// Register appends endpoints. Order matters for catch-all routes.
func (r *Registry) Register(eps ...Endpoint) {
	r.endpoints = append(r.endpoints, eps...)
}

// Mount adds every route to mux using "METHOD /path" patterns.
// Routes that require init are wrapped by gate.
func (r *Registry) Mount(mux *http.ServeMux, gate Middleware) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() && gate != nil {
			handler = gate(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Commands returns the CLI commands of the registered endpoints,
// skipping endpoints without one.
func (r *Registry) Commands(getServerURL func() string) []*cobra.Command {
	var cmds []*cobra.Command
	for _, ep := range r.endpoints {
		if cmd := ep.Command(getServerURL); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Group nests the registry's commands under a parent command.
func (r *Registry) Group(use, short string, getServerURL func() string) *cobra.Command {
	parent := &cobra.Command{Use: use, Short: short}
	parent.AddCommand(r.Commands(getServerURL)...)
	return parent
}

// Endpoints returns the registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
