package config

import (
	"errors"
	"fmt"
	"unicode"
)

var (
	// ErrNoDefault is returned when no default value exists for a config key.
	ErrNoDefault = errors.New("no default exists")

	// ErrInvalidKey is returned when a config key contains invalid characters.
	ErrInvalidKey = errors.New("invalid config key")

	// ErrUnknownKey is returned when a key is neither configured nor defaulted.
	ErrUnknownKey = errors.New("unknown config key")
)

// Entry is a single configuration key with its value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// DefaultEntries returns every default key. They seed viper, so
// environment overrides work for each of them.
func DefaultEntries() []Entry {
	d := DefaultConfig()

	llm := make(map[string]any, len(d.LLMProviders))
	for name, p := range d.LLMProviders {
		llm[name] = map[string]any{
			"type":       p.Type,
			"model":      p.Model,
			"api_key":    p.APIKey,
			"rate_limit": p.RateLimit,
			"enabled":    p.Enabled,
		}
	}

	return []Entry{
		{Key: "llm_providers", Value: llm, Description: "LLM providers by name"},
		{Key: "defaults.llm_provider", Value: d.Defaults.LLMProvider, Description: "Provider used for dialogues"},
		{Key: "defaults.model", Value: d.Defaults.Model, Description: "Model override (empty = provider model)"},
		{Key: "defaults.max_tokens", Value: d.Defaults.MaxTokens, Description: "Completion token limit (0 = provider default)"},
		{Key: "defaults.options", Value: d.Defaults.Options, Description: "Extra request fields forwarded verbatim"},
		{Key: "templates.path", Value: d.Templates.Path, Description: "Template catalog file (empty = built-in catalog)"},
		{Key: "retry.max_attempts", Value: d.Retry.MaxAttempts, Description: "Dialogue attempts before giving up"},
		{Key: "retry.delay", Value: d.Retry.Delay.String(), Description: "Pause between dialogue attempts"},
		{Key: "matcher.threshold", Value: d.Matcher.Threshold, Description: "Minimum similarity for a fuzzy template match"},
		{Key: "server.host", Value: d.Server.Host, Description: "HTTP listen host"},
		{Key: "server.port", Value: d.Server.Port, Description: "HTTP listen port"},
		{Key: "log_level", Value: d.LogLevel, Description: "debug, info, warn or error"},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// RequireDefault is GetDefault returning ErrNoDefault for unknown keys.
func RequireDefault(key string) (Entry, error) {
	def := GetDefault(key)
	if def == nil {
		return Entry{}, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return *def, nil
}
