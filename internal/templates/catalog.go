// Package templates loads the catalog of report skeletons the model fills in.
//
// A catalog is a JSON object mapping a template name (e.g. "CT ABDOMEN PELVIS")
// to a skeleton object of category -> default text. The document order of the
// source file is preserved: it is the iteration order used by the matcher and
// the order in which names are listed to the model.
package templates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ErrConfig is returned when a catalog is missing or malformed.
// It is fatal at startup and never retried.
var ErrConfig = errors.New("template catalog error")

//go:embed data/report_templates.json
var defaultCatalog []byte

//go:embed catalog.schema.json
var catalogSchemaJSON string

var catalogSchema = jsonschema.MustCompileString("catalog.schema.json", catalogSchemaJSON)

// Catalog is an immutable, ordered mapping of template name to JSON skeleton.
// It is safe for concurrent reads.
type Catalog struct {
	keys      []string
	skeletons map[string]json.RawMessage
}

// Entry is a single template of the catalog.
type Entry struct {
	Name     string          `json:"name"`
	Skeleton json.RawMessage `json:"skeleton"`
}

// Load reads a catalog from a file on disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: catalog file %s not found", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfig, path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadFS reads a catalog from a file in fsys.
func LoadFS(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfig, name, err)
	}
	return Parse(data)
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultCatalog)
})

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Parse builds a catalog from serialized JSON.
// Duplicate names keep their first position and their last value.
func Parse(data []byte) (*Catalog, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: catalog is not valid JSON", ErrConfig)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := catalogSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	c := &Catalog{skeletons: make(map[string]json.RawMessage)}
	var parseErr error
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(value.Raw)); err != nil {
			parseErr = fmt.Errorf("%w: template %q: %v", ErrConfig, name, err)
			return false
		}
		if _, seen := c.skeletons[name]; !seen {
			c.keys = append(c.keys, name)
		}
		c.skeletons[name] = json.RawMessage(buf.Bytes())
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return c, nil
}

// Keys returns the template names in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.keys)
}

// Has reports whether name is a catalog key.
func (c *Catalog) Has(name string) bool {
	_, ok := c.skeletons[name]
	return ok
}

// Skeleton returns the compacted JSON skeleton for name.
func (c *Catalog) Skeleton(name string) (json.RawMessage, bool) {
	s, ok := c.skeletons[name]
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(s))
	copy(out, s)
	return out, true
}

// SkeletonMap returns a freshly decoded copy of the skeleton for name.
func (c *Catalog) SkeletonMap(name string) (map[string]any, bool) {
	s, ok := c.skeletons[name]
	if !ok {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(s, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Entries returns all templates in catalog order.
func (c *Catalog) Entries() []Entry {
	entries := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		s, _ := c.Skeleton(k)
		entries = append(entries, Entry{Name: k, Skeleton: s})
	}
	return entries
}

// WriteJSON writes the catalog as indented JSON in catalog order.
// The output parses back to an equal catalog.
func (c *Catalog) WriteJSON(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(c.skeletons[k])
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
