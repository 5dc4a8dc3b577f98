// Package structure builds the second-stage prompt that asks the model to
// fill a template with the contents of the report.
package structure

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"github.com/jackzampolin/radreport/internal/matcher"
	"github.com/jackzampolin/radreport/internal/prompts"
	"github.com/jackzampolin/radreport/internal/templates"
)

//go:embed template.tmpl
var templatePromptTmpl string

//go:embed freeform.tmpl
var freeFormPrompt string

var templatePrompt = template.Must(template.New("structure.template").Parse(templatePromptTmpl))

// Prompt keys
const (
	TemplatePromptKey = "dialogue.structure.template"
	FreeFormPromptKey = "dialogue.structure.freeform"
)

// ErrUnknownTemplate is returned when a resolution names a key the catalog lacks.
var ErrUnknownTemplate = errors.New("template not in catalog")

// SystemPrompt returns the structuring prompt for res together with its
// registry key. A catalog resolution embeds that entry's skeleton; the
// free-form resolution uses the generic outline.
func SystemPrompt(catalog *templates.Catalog, res matcher.Resolution) (text, key string, err error) {
	if res.IsFreeForm() {
		return FreeFormPrompt(), FreeFormPromptKey, nil
	}

	skeleton, ok := catalog.Skeleton(res.Key)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, res.Key)
	}
	text, err = TemplatePrompt(res.Key, skeleton)
	if err != nil {
		return "", "", err
	}
	return text, TemplatePromptKey, nil
}

// TemplatePrompt embeds an indented copy of skeleton under name.
func TemplatePrompt(name string, skeleton json.RawMessage) (string, error) {
	var indented bytes.Buffer
	if err := json.Indent(&indented, skeleton, "", "  "); err != nil {
		return "", fmt.Errorf("indent skeleton %q: %w", name, err)
	}
	return prompts.Render(templatePrompt, struct {
		Name     string
		Skeleton string
	}{
		Name:     name,
		Skeleton: indented.String(),
	})
}

// FreeFormPrompt returns the generic outline prompt.
func FreeFormPrompt() string {
	return freeFormPrompt
}

// RegisterPrompts registers the structuring prompts with the registry.
func RegisterPrompts(r *prompts.Registry) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         TemplatePromptKey,
		Text:        templatePromptTmpl,
		Description: "Structuring system prompt - fill a catalog template with the report",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FreeFormPromptKey,
		Text:        freeFormPrompt,
		Description: "Structuring system prompt - free-form outline when no template fits",
	})
}
