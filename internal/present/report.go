package present

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/radreport/internal/dialogue"
)

// Report is a dialogue result shaped for output.
type Report struct {
	Kind              dialogue.Kind   `json:"kind" yaml:"kind"`
	Data              json.RawMessage `json:"data,omitempty" yaml:"-"`
	Text              string          `json:"text,omitempty" yaml:"text,omitempty"`
	Template          string          `json:"template" yaml:"template"`
	RequestedTemplate string          `json:"requested_template" yaml:"requested_template"`
	MainFinding       string          `json:"main_finding" yaml:"main_finding"`
	Similarity        float64         `json:"similarity" yaml:"similarity"`
	Attempts          uint            `json:"attempts" yaml:"attempts"`
	SessionID         string          `json:"session_id" yaml:"session_id"`
	Provider          string          `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model             string          `json:"model,omitempty" yaml:"model,omitempty"`
	DurationMs        int64           `json:"duration_ms" yaml:"duration_ms"`
}

// FromResult converts a dialogue result.
func FromResult(r *dialogue.Result) Report {
	return Report{
		Kind:              r.Kind,
		Data:              r.Document,
		Text:              r.Text,
		Template:          r.Template(),
		RequestedTemplate: r.RequestedTemplate,
		MainFinding:       r.MainFinding,
		Similarity:        r.Resolution.Similarity,
		Attempts:          r.Attempts,
		SessionID:         r.SessionID,
		Provider:          r.Provider,
		Model:             r.Model,
		DurationMs:        r.Duration.Milliseconds(),
	}
}

// Rows flattens the report data. Degraded reports yield a single text row.
func (r Report) Rows() ([]Row, error) {
	if r.Kind == dialogue.KindDegraded {
		return []Row{{Section: "TEXT", Value: r.Text}}, nil
	}
	return Flatten(r.Data)
}

// MarshalYAML keeps the data's key order.
func (r Report) MarshalYAML() (any, error) {
	type plain Report
	var meta yaml.Node
	if err := meta.Encode(plain(r)); err != nil {
		return nil, err
	}
	if len(r.Data) == 0 {
		return &meta, nil
	}

	data, err := YAMLNode(r.Data)
	if err != nil {
		return nil, err
	}
	// "data" follows "kind", matching the JSON field order.
	content := append([]*yaml.Node{}, meta.Content[:2]...)
	content = append(content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "data"}, data)
	content = append(content, meta.Content[2:]...)
	meta.Content = content
	return &meta, nil
}

// Write renders the report in format. JSON and YAML include the metadata;
// CSV and table render the data only.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case FormatCSV, FormatTable:
		rows, err := r.Rows()
		if err != nil {
			return err
		}
		if format == FormatCSV {
			return WriteCSV(w, rows)
		}
		return WriteTable(w, rows)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
