package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/matcher"
	"github.com/jackzampolin/radreport/internal/svcctx"
)

// TemplatesListResponse lists catalog template names in catalog order.
type TemplatesListResponse struct {
	Templates []string `json:"templates"`
	Total     int      `json:"total"`
}

// TemplateResponse is one template with its skeleton.
type TemplateResponse struct {
	Name     string          `json:"name"`
	Skeleton json.RawMessage `json:"skeleton"`
}

// ResolveTemplateRequest is the request body for resolving a template name.
type ResolveTemplateRequest struct {
	Name string `json:"name"`
}

// ResolveTemplateResponse is the outcome of resolving a name.
type ResolveTemplateResponse struct {
	Name       string             `json:"name"`
	Template   string             `json:"template"`
	Resolution matcher.Resolution `json:"resolution"`
	Threshold  float64            `json:"threshold"`
}

// ListTemplatesEndpoint handles GET /api/templates.
type ListTemplatesEndpoint struct{}

func (e *ListTemplatesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/templates", e.handler
}

func (e *ListTemplatesEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	List templates
//	@Tags		templates
//	@Produce	json
//	@Success	200	{object}	TemplatesListResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/api/templates [get]
func (e *ListTemplatesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusInternalServerError, "template catalog not loaded")
		return
	}

	keys := catalog.Keys()
	writeJSON(w, http.StatusOK, TemplatesListResponse{Templates: keys, Total: len(keys)})
}

func (e *ListTemplatesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List server templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TemplatesListResponse
			if err := client.Get(cmd.Context(), "/api/templates", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetTemplateEndpoint handles GET /api/templates/{name}.
type GetTemplateEndpoint struct{}

func (e *GetTemplateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/templates/{name}", e.handler
}

func (e *GetTemplateEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Get a template
//	@Description	Get a template skeleton by exact catalog name
//	@Tags			templates
//	@Produce		json
//	@Param			name	path		string	true	"Template name (URL-encoded)"
//	@Success		200		{object}	TemplateResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/templates/{name} [get]
func (e *GetTemplateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(r.PathValue("name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "invalid template name")
		return
	}

	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusInternalServerError, "template catalog not loaded")
		return
	}

	skeleton, ok := catalog.Skeleton(name)
	if !ok {
		writeError(w, http.StatusNotFound, "template not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{Name: name, Skeleton: skeleton})
}

func (e *GetTemplateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Get a server template by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TemplateResponse
			if err := client.Get(cmd.Context(), "/api/templates/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			var skeleton any
			if err := json.Unmarshal(resp.Skeleton, &skeleton); err != nil {
				return fmt.Errorf("decode skeleton: %w", err)
			}
			return api.Output(map[string]any{"name": resp.Name, "skeleton": skeleton})
		},
	}
}

// ResolveTemplateEndpoint handles POST /api/templates/resolve.
type ResolveTemplateEndpoint struct{}

func (e *ResolveTemplateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/templates/resolve", e.handler
}

func (e *ResolveTemplateEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Resolve a template name
//	@Description	Match a proposed template name against the catalog the way a dialogue does
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ResolveTemplateRequest	true	"Proposed name"
//	@Success		200		{object}	ResolveTemplateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/templates/resolve [post]
func (e *ResolveTemplateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ResolveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusInternalServerError, "template catalog not loaded")
		return
	}

	m := matcher.New(0)
	if s := svcctx.StructurerFrom(r.Context()); s != nil {
		m = s.Matcher()
	}

	res := m.Resolve(catalog.Keys(), req.Name)
	writeJSON(w, http.StatusOK, ResolveTemplateResponse{
		Name:       req.Name,
		Template:   res.String(),
		Resolution: res,
		Threshold:  m.Threshold(),
	})
}

func (e *ResolveTemplateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a template name against the server catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ResolveTemplateResponse
			if err := client.Post(cmd.Context(), "/api/templates/resolve", ResolveTemplateRequest{Name: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
