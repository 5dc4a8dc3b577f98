// Package classify builds the first-stage prompt: identify the main finding
// of a report and request one template from the catalog.
package classify

import (
	_ "embed"
	"text/template"

	"github.com/jackzampolin/radreport/internal/prompts"
)

//go:embed system.tmpl
var systemPromptTmpl string

var systemTemplate = template.Must(template.New("classify.system").Parse(systemPromptTmpl))

// Answers the model may give for TEMPLATE instead of a catalog name.
const (
	OwnTemplate   = "OWN" // no catalog template fits
	NotAReport    = "..." // the text is not a radiology report
	FindingLabel  = "MAIN FINDING:"
	TemplateLabel = "TEMPLATE:"
)

// SystemPromptKey is the registry key of the classification prompt.
const SystemPromptKey = "dialogue.classify.system"

// SystemPrompt lists every catalog key, one per line, in catalog order.
func SystemPrompt(keys []string) string {
	out, err := prompts.Render(systemTemplate, struct{ Keys []string }{Keys: keys})
	if err != nil {
		return systemPromptTmpl
	}
	return out
}

// RegisterPrompts registers the classification prompt with the registry.
func RegisterPrompts(r *prompts.Registry) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Classification system prompt - main finding and template request",
	})
}
