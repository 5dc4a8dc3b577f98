package dialogue

import (
	"strings"

	"github.com/jackzampolin/radreport/internal/matcher"
	"github.com/jackzampolin/radreport/internal/prompts/classify"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/templates"
)

// DryRunClient returns a mock client that plays both sides of a dialogue
// without contacting a model. The classification answer requests the
// report's first line as the template name; the structuring answer is the
// resolved template's unfilled skeleton, or "{}" for free-form.
func DryRunClient(catalog *templates.Catalog, m *matcher.Matcher) *providers.MockClient {
	if m == nil {
		m = matcher.New(0)
	}
	keys := catalog.Keys()
	classifyPrompt := classify.SystemPrompt(keys)

	client := providers.NewMockClient()
	client.Respond = func(_ int, req *providers.ChatRequest) (string, error) {
		system, report := splitRequest(req)
		requested := firstLine(report)

		if system == classifyPrompt {
			return classify.FindingLabel + " dry run\n" + classify.TemplateLabel + " " + requested, nil
		}
		res := m.Resolve(keys, requested)
		if res.IsFreeForm() {
			return "{}", nil
		}
		skeleton, ok := catalog.Skeleton(res.Key)
		if !ok {
			return "{}", nil
		}
		return string(skeleton), nil
	}
	return client
}

func splitRequest(req *providers.ChatRequest) (system, user string) {
	for _, m := range req.Messages {
		switch m.Role {
		case providers.RoleSystem:
			system = m.Content
		case providers.RoleUser:
			user = m.Content
		}
	}
	return system, user
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
