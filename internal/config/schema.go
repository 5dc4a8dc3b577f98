package config

import "time"

// Config holds radreport configuration.
// Stored at: ~/.radreport/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Templates    TemplatesCfg              `mapstructure:"templates" yaml:"templates"`
	Retry        RetryCfg                  `mapstructure:"retry" yaml:"retry"`
	Matcher      MatcherCfg                `mapstructure:"matcher" yaml:"matcher"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"`
}

// LLMProviderCfg configures an LLM provider.
// At most one of APIKey, APIKeyEnv and APIKeyFile may be set.
type LLMProviderCfg struct {
	Type       string        `mapstructure:"type" yaml:"type"`                           // "openai", "openrouter", "mock"
	Model      string        `mapstructure:"model" yaml:"model"`                         // Model name
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`           // Literal key (supports ${ENV_VAR} syntax)
	APIKeyEnv  string        `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`   // Environment variable holding the key
	APIKeyFile string        `mapstructure:"api_key_file" yaml:"api_key_file,omitempty"` // File holding the key
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url,omitempty"`         // Endpoint override
	RateLimit  int           `mapstructure:"rate_limit" yaml:"rate_limit"`               // Requests per minute
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`           // Per-request timeout
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
}

// Credential returns the provider's key sources.
func (p LLMProviderCfg) Credential() Credential {
	return Credential{Value: p.APIKey, Env: p.APIKeyEnv, File: p.APIKeyFile}
}

// DefaultsCfg holds request defaults for every dialogue.
type DefaultsCfg struct {
	LLMProvider string         `mapstructure:"llm_provider" yaml:"llm_provider"`         // Default LLM provider
	Model       string         `mapstructure:"model" yaml:"model,omitempty"`             // Overrides the provider model
	Temperature *float64       `mapstructure:"temperature" yaml:"temperature,omitempty"` // Unset = provider default
	MaxTokens   int            `mapstructure:"max_tokens" yaml:"max_tokens"`             // 0 = provider default
	Options     map[string]any `mapstructure:"options" yaml:"options"`                   // Forwarded verbatim
}

// TemplatesCfg locates the template catalog.
type TemplatesCfg struct {
	Path string `mapstructure:"path" yaml:"path"` // Empty = embedded default catalog
}

// RetryCfg configures the dialogue retry policy.
type RetryCfg struct {
	MaxAttempts uint          `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
}

// MatcherCfg configures template name resolution.
type MatcherCfg struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"openrouter": {
				Type:      "openrouter",
				Model:     "openai/gpt-4o",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 60,
				Enabled:   false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openai",
			Options:     map[string]any{},
		},
		Retry: RetryCfg{
			MaxAttempts: 10,
			Delay:       10 * time.Second,
		},
		Matcher: MatcherCfg{
			Threshold: 0.75,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		LogLevel: "info",
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
