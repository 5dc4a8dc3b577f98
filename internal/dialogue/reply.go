package dialogue

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Kind tags a Result.
type Kind string

const (
	// KindStructured carries a decoded JSON object.
	KindStructured Kind = "structured"
	// KindDegraded carries the model's raw text, unmodified.
	KindDegraded Kind = "degraded"
)

// fencePattern matches a reply wrapped in a single markdown code fence.
var fencePattern = regexp.MustCompile("(?s)\\A```[A-Za-z]*[ \\t]*\\n?(.*?)\\n?[ \\t]*```\\z")

// Reply is the parsed second-stage answer.
type Reply struct {
	Kind     Kind
	Data     map[string]any  // KindStructured
	Document json.RawMessage // KindStructured, key order as sent
	Text     string          // KindDegraded
}

// ParseReply interprets the structuring reply. A JSON object, bare or inside
// one code fence, is structured; anything else is returned as text.
func ParseReply(content string) Reply {
	trimmed := strings.TrimSpace(content)
	if r, ok := parseObject(trimmed); ok {
		return r
	}
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		if r, ok := parseObject(strings.TrimSpace(m[1])); ok {
			return r
		}
	}
	return Reply{Kind: KindDegraded, Text: content}
}

func parseObject(s string) (Reply, bool) {
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return Reply{}, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return Reply{}, false
	}
	var doc bytes.Buffer
	if err := json.Compact(&doc, []byte(s)); err != nil {
		return Reply{}, false
	}
	return Reply{Kind: KindStructured, Data: data, Document: doc.Bytes()}, true
}
