package classify

import (
	"strings"
	"testing"

	"github.com/jackzampolin/radreport/internal/prompts"
)

func TestSystemPrompt(t *testing.T) {
	keys := []string{"CT ABDOMEN PELVIS", "MRI BRAIN", "X-RAY CHEST"}
	got := SystemPrompt(keys)

	if !strings.Contains(got, "CT ABDOMEN PELVIS\nMRI BRAIN\nX-RAY CHEST\n") {
		t.Errorf("keys should be listed one per line in order:\n%s", got)
	}
	for _, want := range []string{
		"MAIN FINDING: <add main finding here>\nTEMPLATE: <add requested template here>",
		"'OWN'",
		"'...'",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(got, "{{") {
		t.Error("prompt should be fully rendered")
	}
}

func TestSystemPrompt_EmptyCatalog(t *testing.T) {
	got := SystemPrompt(nil)
	if !strings.Contains(got, "These templates are available:\nStructure your answer") {
		t.Errorf("empty catalog should list nothing:\n%s", got)
	}
}

func TestRegisterPrompts(t *testing.T) {
	r := prompts.NewRegistry(nil)
	RegisterPrompts(r)

	p, err := r.Get(SystemPromptKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Hash == "" || len(p.Variables) != 1 || p.Variables[0] != "Keys" {
		t.Errorf("unexpected registration %+v", p)
	}
}
