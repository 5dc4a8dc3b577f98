package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/dialogue"
	"github.com/jackzampolin/radreport/internal/document"
	"github.com/jackzampolin/radreport/internal/present"
	"github.com/jackzampolin/radreport/internal/structurer"
	"github.com/jackzampolin/radreport/internal/svcctx"
)

// StructureRequest is the request body for structuring a report.
type StructureRequest struct {
	Text string `json:"text"`
}

// StructureReportEndpoint handles POST /api/reports/structure.
type StructureReportEndpoint struct{}

var _ api.Endpoint = (*StructureReportEndpoint)(nil)

func (e *StructureReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/reports/structure", e.handler
}

func (e *StructureReportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Structure a report
//	@Description	Classify a free-text radiology report and convert it to structured JSON
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Produce		text/csv
//	@Param			request	body		StructureRequest	true	"Report text"
//	@Param			format	query		string				false	"Output format: json (default), yaml, csv or table"
//	@Success		200		{object}	present.Report
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/reports/structure [post]
func (e *StructureReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	format, err := present.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	structureAndRespond(w, r, format, req.Text)
}

func (e *StructureReportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "structure [text]",
		Short: "Structure a report on the server",
		Long: `Send report text to the server and print the structured result.

The text is taken from the argument, --file, or stdin (in that order).
Files ending in .docx or .pdf are uploaded and extracted server-side.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			var resp present.Report
			switch {
			case len(args) == 1:
				if err := client.Post(ctx, "/api/reports/structure", StructureRequest{Text: args[0]}, &resp); err != nil {
					return err
				}
			case file != "":
				if err := uploadFile(ctx, client, file, &resp); err != nil {
					return err
				}
			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if err := client.Post(ctx, "/api/reports/structure", StructureRequest{Text: string(data)}, &resp); err != nil {
					return err
				}
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Report file (.txt, .docx or .pdf)")
	return cmd
}

// UploadReportEndpoint handles POST /api/reports/structure/upload.
type UploadReportEndpoint struct{}

var _ api.Endpoint = (*UploadReportEndpoint)(nil)

func (e *UploadReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/reports/structure/upload", e.handler
}

func (e *UploadReportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload and structure a report
//	@Description	Extract text from an uploaded .txt, .docx or .pdf report and structure it
//	@Tags			reports
//	@Accept			mpfd
//	@Produce		json
//	@Produce		text/csv
//	@Param			file	formData	file	true	"Report document"
//	@Param			format	query		string	false	"Output format: json (default), yaml, csv or table"
//	@Success		200		{object}	present.Report
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/reports/structure/upload [post]
func (e *UploadReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	format, err := present.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+1<<20)
	if err := r.ParseMultipartForm(document.MaxSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	src, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer src.Close()

	text, err := document.Extract(fh.Filename, src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	structureAndRespond(w, r, format, text)
}

func (e *UploadReportEndpoint) Command(_ func() string) *cobra.Command {
	// Uploads go through "structure --file".
	return nil
}

// structureAndRespond runs one dialogue and writes the result in format.
func structureAndRespond(w http.ResponseWriter, r *http.Request, format present.Format, text string) {
	s := svcctx.StructurerFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "structurer not initialized")
		return
	}

	result, err := s.Structure(r.Context(), text)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("structure report failed", "error", err)
		writeError(w, structureStatus(err), err.Error())
		return
	}

	writeReport(w, r, format, present.FromResult(result))
}

// writeReport writes a structured report. Headers are already sent when
// rendering fails, so the failure is only logged.
func writeReport(w http.ResponseWriter, r *http.Request, format present.Format, report present.Report) {
	if format == present.FormatJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	if format == present.FormatCSV {
		w.Header().Set("Content-Disposition", `attachment; filename="`+csvName(report)+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if err := present.Write(w, format, report); err != nil {
		svcctx.LoggerFrom(r.Context()).Error("write structured report failed",
			"format", format, "session_id", report.SessionID, "error", err)
	}
}

// structureStatus maps a structuring error to an HTTP status.
func structureStatus(err error) int {
	switch {
	case errors.Is(err, dialogue.ErrEmptyReport):
		return http.StatusBadRequest
	case errors.Is(err, structurer.ErrNoProvider):
		return http.StatusServiceUnavailable
	// Before context errors: the last failed attempt may be a client timeout.
	case errors.Is(err, dialogue.ErrTransientRemote):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format present.Format) string {
	switch format {
	case present.FormatCSV:
		return "text/csv; charset=utf-8"
	case present.FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

func csvName(r present.Report) string {
	name := strings.ToLower(strings.Join(strings.Fields(r.Template), "_"))
	if name == "" {
		name = "report"
	}
	return name + ".csv"
}

func uploadFile(ctx context.Context, client *api.Client, path string, result any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return client.PostFile(ctx, "/api/reports/structure/upload", "file", filepath.Base(path), f, result)
}
