package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog,omitempty"`
	LLM     string `json:"llm,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Reports whether the template catalog is loaded and an LLM client is configured
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Catalog: "ok", LLM: "ok"}

	if catalog := svcctx.CatalogFrom(r.Context()); catalog == nil {
		resp.Catalog = "not_loaded"
	}

	if s := svcctx.StructurerFrom(r.Context()); s == nil {
		resp.LLM = "not_initialized"
	} else if !s.Ready() {
		resp.LLM = "not_configured"
	}

	if resp.Catalog != "ok" || resp.LLM != "ok" {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (catalog and LLM client)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:  %s\n", resp.Status)
			fmt.Fprintf(out, "Catalog: %s\n", resp.Catalog)
			fmt.Fprintf(out, "LLM:     %s\n", resp.LLM)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string          `json:"server"`
	Home      string          `json:"home,omitempty"`
	Providers ProvidersStatus `json:"providers"`
	Catalog   CatalogStatus   `json:"catalog"`
	Dialogue  DialogueStatus  `json:"dialogue"`
}

// ProvidersStatus shows registered LLM providers.
type ProvidersStatus struct {
	LLM     []string `json:"llm"`
	Default string   `json:"default"`
}

// CatalogStatus shows the loaded template catalog.
type CatalogStatus struct {
	Templates int `json:"templates"`
}

// DialogueStatus shows the settings the next dialogue will use.
type DialogueStatus struct {
	Model       string  `json:"model,omitempty"`
	MaxAttempts uint    `json:"max_attempts"`
	Delay       string  `json:"delay"`
	Threshold   float64 `json:"threshold"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Registered providers, catalog size and dialogue settings
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server:    "running",
		Providers: ProvidersStatus{LLM: []string{}},
	}

	if h := svcctx.HomeFrom(r.Context()); h != nil {
		resp.Home = h.Path()
	}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		resp.Providers.LLM = registry.ListLLM()
	}

	if catalog := svcctx.CatalogFrom(r.Context()); catalog != nil {
		resp.Catalog.Templates = catalog.Len()
	}

	if cm := svcctx.ConfigFrom(r.Context()); cm != nil {
		cfg := cm.Get()
		resp.Providers.Default = cfg.Defaults.LLMProvider
		resp.Dialogue.Model = cfg.Defaults.Model
		if resp.Dialogue.Model == "" {
			if p, ok := cfg.GetLLMProvider(cfg.Defaults.LLMProvider); ok {
				resp.Dialogue.Model = p.Model
			}
		}
		resp.Dialogue.MaxAttempts = cfg.Retry.MaxAttempts
		resp.Dialogue.Delay = cfg.Retry.Delay.String()
		resp.Dialogue.Threshold = cfg.Matcher.Threshold
	}

	if s := svcctx.StructurerFrom(r.Context()); s != nil {
		resp.Providers.Default = s.ProviderName()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
