package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/radreport/internal/providers"
)

// EnvPrefix prefixes every environment override (RADREPORT_SERVER_PORT, ...).
const EnvPrefix = "RADREPORT"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// cfgFile overrides the search path (homeDir, then the working directory).
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload messages.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		cm.logger = logger
	}
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	v := cm.v
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}

	// Environment variables with RADREPORT_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("defaults.temperature"); err != nil {
		return err
	}

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if homeDir != "" {
			v.AddConfigPath(homeDir)
		}
		v.AddConfigPath(".")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.dropInheritedKeys(cm.v.InConfig)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFile returns the file the configuration was read from ("" if none).
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Lookup returns the effective value of a dotted key.
func (cm *Manager) Lookup(key string) (Entry, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, err
	}
	if !cm.v.IsSet(key) {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	e := Entry{Key: key, Value: cm.v.Get(key)}
	if def := GetDefault(key); def != nil {
		e.Description = def.Description
	}
	return e, nil
}

// Entries returns the effective value of every known key.
// Provider API keys are redacted.
func (cm *Manager) Entries() []Entry {
	// AllSettings merges nested maps across defaults and the file.
	settings := cm.v.AllSettings()

	defaults := DefaultEntries()
	out := make([]Entry, 0, len(defaults))
	for _, def := range defaults {
		e := def
		if v, ok := lookupPath(settings, def.Key); ok {
			e.Value = v
		}
		out = append(out, Redact(e))
	}
	return out
}

func lookupPath(settings map[string]any, key string) (any, bool) {
	var cur any = settings
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Redact masks literal API keys in provider entries.
// ${ENV_VAR} references are kept since they name no secret.
func Redact(e Entry) Entry {
	if !strings.HasPrefix(e.Key, "llm_providers") {
		return e
	}
	e.Value = redactValue(e.Key, e.Value)
	return e
}

func redactValue(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = redactValue(key+"."+k, inner)
		}
		return out
	case string:
		if strings.HasSuffix(key, ".api_key") && val != "" && !envVarPattern.MatchString(val) {
			return "********"
		}
	}
	return v
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
// A file that fails to parse or validate is logged and ignored.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// dropInheritedKeys clears the default api_key of a provider whose file
// entry names api_key_env or api_key_file instead. Viper merges the
// default provider map into the file's.
func (c *Config) dropInheritedKeys(inConfig func(key string) bool) {
	defaults := DefaultConfig().LLMProviders
	for name, p := range c.LLMProviders {
		if p.APIKeyEnv == "" && p.APIKeyFile == "" {
			continue
		}
		def, ok := defaults[name]
		if !ok || p.APIKey != def.APIKey || inConfig("llm_providers."+name+".api_key") {
			continue
		}
		p.APIKey = ""
		c.LLMProviders[name] = p
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("matcher.threshold must be within [0, 1], got %v", c.Matcher.Threshold)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %v", c.Retry.Delay)
	}
	for name, p := range c.LLMProviders {
		switch p.Type {
		case providers.TypeOpenAI, providers.TypeOpenRouter, providers.TypeMock:
		default:
			return fmt.Errorf("llm_providers.%s: unknown type %q", name, p.Type)
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("llm_providers.%s: rate_limit must not be negative", name)
		}
		if p.Credential().sources() > 1 {
			return fmt.Errorf("llm_providers.%s: %w (set one of api_key, api_key_env, api_key_file)", name, ErrAmbiguousCredential)
		}
	}
	return nil
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// Credentials are resolved here; a provider whose credential cannot be
// resolved keeps an empty key and is skipped by the registry. Resolve
// failures of enabled providers are logged.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	for name, llm := range c.LLMProviders {
		key, err := llm.Credential().Resolve()
		if err != nil && llm.Enabled && llm.Type != providers.TypeMock {
			slog.Warn("LLM provider credential not resolved", "provider", name, "error", err)
		}
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:      llm.Type,
			Model:     llm.Model,
			APIKey:    key,
			BaseURL:   llm.BaseURL,
			RateLimit: llm.RateLimit,
			Timeout:   llm.Timeout,
			Enabled:   llm.Enabled,
		}
	}

	return cfg
}

// WithProvider returns a copy of c that uses provider for dialogues.
// A non-zero cred replaces the provider's key sources, and a non-empty
// model overrides its model. The provider is enabled in the copy.
func (c *Config) WithProvider(provider, model string, cred Credential) (*Config, error) {
	if provider == "" {
		provider = c.Defaults.LLMProvider
	}
	p, ok := c.LLMProviders[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}

	out := *c
	out.LLMProviders = make(map[string]LLMProviderCfg, len(c.LLMProviders))
	for name, cfg := range c.LLMProviders {
		out.LLMProviders[name] = cfg
	}

	if !cred.IsZero() {
		p.APIKey, p.APIKeyEnv, p.APIKeyFile = cred.Value, cred.Env, cred.File
	}
	if model != "" {
		p.Model = model
		out.Defaults.Model = ""
	}
	p.Enabled = true
	out.LLMProviders[provider] = p
	out.Defaults.LLMProvider = provider
	return &out, nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# radreport configuration
# API keys use ${ENV_VAR} syntax to reference environment variables,
# or set api_key_env / api_key_file instead of api_key.
# Set these in your shell: export OPENAI_API_KEY=xxx OPENROUTER_API_KEY=xxx
`)

	return os.WriteFile(path, append(header, data...), 0o644)
}
