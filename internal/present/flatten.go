// Package present renders structured reports as JSON, YAML, CSV and tables.
// Rendering walks the model's document directly so its key order survives.
package present

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when a document is not a JSON object.
var ErrNotObject = errors.New("document is not a JSON object")

// Row is one leaf of a structured report. Section is the top-level key;
// Field is the dotted path below it ("" for top-level values).
type Row struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

// Flatten lists every leaf of doc in document order. Array elements are
// addressed by index; empty objects and arrays yield a single empty value.
func Flatten(doc []byte) ([]Row, error) {
	if !gjson.ValidBytes(doc) {
		return nil, ErrNotObject
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	var rows []Row
	root.ForEach(func(key, value gjson.Result) bool {
		rows = appendLeaves(rows, key.String(), "", value)
		return true
	})
	return rows, nil
}

func appendLeaves(rows []Row, section, path string, v gjson.Result) []Row {
	if !v.IsObject() && !v.IsArray() {
		return append(rows, Row{Section: section, Field: path, Value: scalar(v)})
	}

	n := 0
	v.ForEach(func(key, child gjson.Result) bool {
		name := key.String()
		if v.IsArray() {
			name = strconv.Itoa(n)
		}
		n++
		rows = appendLeaves(rows, section, join(path, name), child)
		return true
	})
	if n == 0 {
		rows = append(rows, Row{Section: section, Field: path})
	}
	return rows
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}
