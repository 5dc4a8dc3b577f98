// Package prompts holds the embedded prompt texts sent to the model.
//
// Each prompt is a .tmpl file compiled into the binary, registered under a
// hierarchical key (for example "dialogue.classify.system") together with a
// SHA256 hash of its text. The hash is stored on every recorded model call so
// a reply can be traced back to the exact prompt version that produced it.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`                 // Hierarchical key: dialogue.classify.system
	Text        string   `json:"text"`                // The prompt text (Go template)
	Description string   `json:"description"`         // Human-readable description
	Variables   []string `json:"variables,omitempty"` // Extracted template variables
	Hash        string   `json:"hash"`                // SHA256 hash of the text for change detection
}
