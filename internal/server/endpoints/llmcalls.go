package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/llmcall"
	"github.com/jackzampolin/radreport/internal/svcctx"
)

// defaultCallLimit caps list responses when no limit is given.
const defaultCallLimit = 100

// LLMCallsResponse contains a list of LLM calls.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List LLM calls
//	@Description	Recent model calls, newest first, with optional filters
//	@Tags			llmcalls
//	@Produce		json
//	@Param			session_id	query		string	false	"Filter by dialogue session ID"
//	@Param			stage		query		string	false	"Filter by dialogue stage (classify or structure)"
//	@Param			prompt_key	query		string	false	"Filter by prompt key"
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			success		query		bool	false	"Filter by success status (true or false)"
//	@Param			limit		query		int		false	"Max results (default 100)"
//	@Param			offset		query		int		false	"Result offset"
//	@Param			after		query		string	false	"Filter calls after this RFC3339 timestamp"
//	@Param			before		query		string	false	"Filter calls before this RFC3339 timestamp"
//	@Success		200			{object}	LLMCallsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}

	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls, Total: len(calls)})
}

// parseCallFilter reads list filters from query parameters.
func parseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		SessionID: q.Get("session_id"),
		Stage:     q.Get("stage"),
		PromptKey: q.Get("prompt_key"),
		Provider:  q.Get("provider"),
		Model:     q.Get("model"),
		Limit:     defaultCallLimit,
	}

	switch filter.Stage {
	case "", llmcall.StageClassify, llmcall.StageStructure:
	default:
		return filter, fmt.Errorf("invalid stage: %q must be %s or %s",
			filter.Stage, llmcall.StageClassify, llmcall.StageStructure)
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid %s: %q must be a non-negative integer", name, v)
		}
		*dst = n
	}
	if filter.Limit == 0 {
		filter.Limit = defaultCallLimit
	}

	for name, dst := range map[string]**time.Time{"after": &filter.After, "before": &filter.Before} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s time: %q must be RFC3339 (e.g. 2024-01-15T00:00:00Z)", name, v)
		}
		*dst = &t
	}

	return filter, nil
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var sessionID, stage, promptKey, provider, model string
	var limit, offset int
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			for name, v := range map[string]string{
				"session_id": sessionID,
				"stage":      stage,
				"prompt_key": promptKey,
				"provider":   provider,
				"model":      model,
			} {
				if v != "" {
					params.Set(name, v)
				}
			}
			if failedOnly {
				params.Set("success", "false")
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			path := "/api/llmcalls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp LLMCallsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Filter by dialogue session ID")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage (classify or structure)")
	cmd.Flags().StringVar(&promptKey, "prompt-key", "", "Filter by prompt key")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed calls")
	cmd.Flags().IntVar(&limit, "limit", defaultCallLimit, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Get an LLM call
//	@Description	A single model call with its prompt key, hash and reply
//	@Tags			llmcalls
//	@Produce		json
//	@Param			id	path		string	true	"LLM call ID"
//	@Success		200	{object}	llmcall.Call
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/llmcalls/{id} [get]
func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "LLM call not found")
		return
	}

	writeJSON(w, http.StatusOK, call)
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an LLM call by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var call llmcall.Call
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/llmcalls/"+url.PathEscape(args[0]), &call); err != nil {
				return err
			}
			return api.Output(call)
		},
	}
}

// SessionTraceEndpoint handles GET /api/llmcalls/sessions/{session_id}.
type SessionTraceEndpoint struct{}

func (e *SessionTraceEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/sessions/{session_id}", e.handler
}

func (e *SessionTraceEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Trace a dialogue
//	@Description	Every model call of one dialogue session, oldest first, with per-stage counts
//	@Tags			llmcalls
//	@Produce		json
//	@Param			session_id	path		string	true	"Dialogue session ID"
//	@Success		200			{object}	llmcall.Trace
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls/sessions/{session_id} [get]
func (e *SessionTraceEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	trace, err := store.Trace(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trace == nil {
		writeError(w, http.StatusNotFound, "no calls recorded for session")
		return
	}

	writeJSON(w, http.StatusOK, trace)
}

func (e *SessionTraceEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <session-id>",
		Short: "Show every model call of one dialogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var trace llmcall.Trace
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/llmcalls/sessions/"+url.PathEscape(args[0]), &trace); err != nil {
				return err
			}
			return api.Output(trace)
		},
	}
}
