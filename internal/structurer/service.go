// Package structurer builds dialogue orchestrators from the live
// configuration and provider registry.
package structurer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/dialogue"
	"github.com/jackzampolin/radreport/internal/llmcall"
	"github.com/jackzampolin/radreport/internal/matcher"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/retry"
	"github.com/jackzampolin/radreport/internal/templates"
)

// ErrNoProvider is returned when the configured LLM provider is not registered.
var ErrNoProvider = errors.New("no LLM provider available")

// Options configures a Service.
type Options struct {
	Config   func() *config.Config
	Registry *providers.Registry
	Catalog  *templates.Catalog
	Recorder *llmcall.Recorder
	Logger   *slog.Logger

	// DryRun answers every call locally without a provider.
	DryRun bool
	// Timer replaces the retry clock (tests).
	Timer retry.Timer
}

// Service structures reports with the currently configured provider.
// Settings are read on every call, so hot-reloaded changes apply to the
// next report.
type Service struct {
	opts Options
}

// New creates a service.
func New(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("structurer: catalog is required")
	}
	if opts.Config == nil {
		defaults := config.DefaultConfig()
		opts.Config = func() *config.Config { return defaults }
	}
	if opts.Registry == nil {
		opts.Registry = providers.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{opts: opts}, nil
}

// Catalog returns the template catalog.
func (s *Service) Catalog() *templates.Catalog {
	return s.opts.Catalog
}

// ProviderName returns the provider dialogues will use.
func (s *Service) ProviderName() string {
	if s.opts.DryRun {
		return providers.MockClientName
	}
	return s.opts.Config().Defaults.LLMProvider
}

// Ready reports whether a dialogue could start now.
func (s *Service) Ready() bool {
	_, err := s.client()
	return err == nil
}

// Matcher returns a matcher with the configured threshold.
func (s *Service) Matcher() *matcher.Matcher {
	return matcher.New(s.opts.Config().Matcher.Threshold)
}

// Orchestrator builds an orchestrator from the current settings.
func (s *Service) Orchestrator() (*dialogue.Orchestrator, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	cfg := s.opts.Config()

	model := cfg.Defaults.Model
	if model == "" {
		if p, ok := cfg.GetLLMProvider(cfg.Defaults.LLMProvider); ok {
			model = p.Model
		}
	}

	return dialogue.New(dialogue.Config{
		Client:      client,
		Catalog:     s.opts.Catalog,
		Model:       model,
		Temperature: cfg.Defaults.Temperature,
		MaxTokens:   cfg.Defaults.MaxTokens,
		Options:     cfg.Defaults.Options,
		Policy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
			Timer:       s.opts.Timer,
		},
		Threshold: cfg.Matcher.Threshold,
		Logger:    s.opts.Logger,
		Recorder:  s.opts.Recorder,
	})
}

// Structure runs one dialogue for text.
func (s *Service) Structure(ctx context.Context, text string) (*dialogue.Result, error) {
	o, err := s.Orchestrator()
	if err != nil {
		return nil, err
	}
	return o.Structure(ctx, text)
}

func (s *Service) client() (providers.LLMClient, error) {
	if s.opts.DryRun {
		return dialogue.DryRunClient(s.opts.Catalog, s.Matcher()), nil
	}
	name := s.opts.Config().Defaults.LLMProvider
	client, err := s.opts.Registry.GetLLM(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not configured or has no API key", ErrNoProvider, name)
	}
	return client, nil
}
