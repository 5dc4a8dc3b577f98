package templates

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Run("preserves document order", func(t *testing.T) {
		data := []byte(`{
			"X-RAY CHEST": {"LUNGS": "Clear."},
			"CT ABDOMEN PELVIS": {"FINDINGS": {"PANCREAS": "Normal."}},
			"MRI BRAIN": {"IMPRESSION": "Normal."}
		}`)

		c, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}

		want := []string{"X-RAY CHEST", "CT ABDOMEN PELVIS", "MRI BRAIN"}
		if diff := cmp.Diff(want, c.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		if c.Len() != 3 {
			t.Errorf("Len() = %d, want 3", c.Len())
		}
	})

	t.Run("compacts skeletons", func(t *testing.T) {
		c, err := Parse([]byte(`{"CT": { "FINDINGS" : { "LIVER" : "Normal." } } }`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		s, ok := c.Skeleton("CT")
		if !ok {
			t.Fatal("expected CT skeleton")
		}
		if string(s) != `{"FINDINGS":{"LIVER":"Normal."}}` {
			t.Errorf("Skeleton() = %s", s)
		}
	})

	t.Run("duplicate keys keep first position and last value", func(t *testing.T) {
		c, err := Parse([]byte(`{"A": {"v": "1"}, "B": {"v": "2"}, "A": {"v": "3"}}`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if diff := cmp.Diff([]string{"A", "B"}, c.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		m, _ := c.SkeletonMap("A")
		if m["v"] != "3" {
			t.Errorf("A.v = %v, want 3", m["v"])
		}
	})

	t.Run("empty object is an empty catalog", func(t *testing.T) {
		c, err := Parse([]byte(`{}`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})

	errCases := []struct {
		name string
		data string
	}{
		{"invalid json", `{"CT": `},
		{"not an object", `["CT", "MRI"]`},
		{"template is not an object", `{"CT": "findings"}`},
		{"empty input", ``},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "templates.json")
		if err := os.WriteFile(path, []byte(`{"CT HEAD": {"IMPRESSION": "Normal."}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !c.Has("CT HEAD") {
			t.Error("expected CT HEAD")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("from fs", func(t *testing.T) {
		fsys := fstest.MapFS{
			"t.json": {Data: []byte(`{"US": {"LIVER": "Normal."}}`)},
		}
		c, err := LoadFS(fsys, "t.json")
		if err != nil {
			t.Fatalf("LoadFS() error = %v", err)
		}
		if !c.Has("US") {
			t.Error("expected US")
		}
	})
}

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if !c.Has("CT ABDOMEN PELVIS") {
		t.Error("default catalog should contain CT ABDOMEN PELVIS")
	}
	m, ok := c.SkeletonMap("CT ABDOMEN PELVIS")
	if !ok {
		t.Fatal("expected skeleton map")
	}
	if _, ok := m["FINDINGS"].(map[string]any); !ok {
		t.Errorf("FINDINGS should be an object, got %T", m["FINDINGS"])
	}
}

func TestCatalog_CopiesAreIndependent(t *testing.T) {
	c, err := Parse([]byte(`{"A": {"x": "1"}}`))
	if err != nil {
		t.Fatal(err)
	}
	keys := c.Keys()
	keys[0] = "mutated"
	if c.Keys()[0] != "A" {
		t.Error("Keys() should return a copy")
	}

	m, _ := c.SkeletonMap("A")
	m["x"] = "mutated"
	m2, _ := c.SkeletonMap("A")
	if m2["x"] != "1" {
		t.Error("SkeletonMap() should return a fresh copy")
	}
}

func TestCatalog_WriteJSON(t *testing.T) {
	c, err := Parse([]byte(`{"Z": {"b": "2", "a": "1"}, "A": {"x": ["y"]}}`))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := c.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	back, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("exported catalog does not parse: %v", err)
	}
	if diff := cmp.Diff(c.Entries(), back.Entries()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("{\n  \"Z\": {\n    \"b\"")) {
		t.Errorf("WriteJSON() lost key order:\n%s", buf.String())
	}
}
