package present

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format names an output rendering.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// ParseFormat validates a format name ("" = json).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatCSV, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml, csv or table)", s)
	}
}

var csvHeader = []string{"section", "field", "value"}

// WriteCSV writes rows with a section,field,value header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Section, r.Field, r.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// WriteTable writes rows as a bordered text table. Repeated section names
// are blanked so each section reads as a group.
func WriteTable(w io.Writer, rows []Row) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SECTION", "FIELD", "VALUE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	prev := ""
	for _, r := range rows {
		section := r.Section
		if section == prev {
			section = ""
		}
		prev = r.Section
		t.Row(section, r.Field, r.Value)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// WriteJSON writes doc indented, keeping its key order.
func WriteJSON(w io.Writer, doc []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteYAML writes doc as YAML, keeping its key order.
func WriteYAML(w io.Writer, doc []byte) error {
	node, err := YAMLNode(doc)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(node)
}

// YAMLNode converts a JSON document into an equivalent YAML node tree.
func YAMLNode(doc []byte) (*yaml.Node, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return yamlNode(gjson.ParseBytes(doc)), nil
}

func yamlNode(v gjson.Result) *yaml.Node {
	switch {
	case v.IsObject():
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		v.ForEach(func(key, value gjson.Result) bool {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key.String()},
				yamlNode(value))
			return true
		})
		return n
	case v.IsArray():
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		v.ForEach(func(_, value gjson.Result) bool {
			n.Content = append(n.Content, yamlNode(value))
			return true
		})
		return n
	}

	switch v.Type {
	case gjson.String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Str}
	case gjson.Number:
		if _, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.Raw}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.Raw}
	case gjson.True, gjson.False:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.Raw}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
