// Package dialogue runs the two-stage model conversation that turns a free
// text radiology report into structured JSON.
//
// The first call asks the model for the main finding and a template name.
// The name is resolved against the catalog, and the second call asks the
// model to fill the resolved template (or a generic outline). The whole
// exchange is retried as a unit.
package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/radreport/internal/llmcall"
	"github.com/jackzampolin/radreport/internal/matcher"
	"github.com/jackzampolin/radreport/internal/prompts"
	"github.com/jackzampolin/radreport/internal/prompts/classify"
	"github.com/jackzampolin/radreport/internal/prompts/structure"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/retry"
	"github.com/jackzampolin/radreport/internal/templates"
)

// Config configures an Orchestrator.
type Config struct {
	// Required
	Client  providers.LLMClient
	Catalog *templates.Catalog

	// Request parameters passed to every call. Empty Model uses the client default.
	Model       string
	Temperature *float64
	MaxTokens   int
	Options     map[string]any

	// Policy is the retry policy for a whole dialogue. Zero value = retry.Default().
	Policy retry.Policy

	// Threshold is the fuzzy matching threshold (0 = matcher.Threshold).
	Threshold float64

	Logger   *slog.Logger
	Recorder *llmcall.Recorder
}

// Orchestrator runs dialogues. It holds only immutable state and is safe
// for concurrent use.
type Orchestrator struct {
	client   providers.LLMClient
	catalog  *templates.Catalog
	keys     []string
	matcher  *matcher.Matcher
	policy   retry.Policy
	logger   *slog.Logger
	recorder *llmcall.Recorder

	model       string
	temperature *float64
	maxTokens   int
	options     map[string]any

	classifyPrompt string
}

// Result is the outcome of a successful dialogue.
type Result struct {
	Kind Kind `json:"kind"`

	// Data is the decoded object (KindStructured).
	Data map[string]any `json:"-"`
	// Document is the object as sent by the model, key order kept (KindStructured).
	Document json.RawMessage `json:"-"`
	// Text is the raw reply (KindDegraded).
	Text string `json:"text,omitempty"`

	SessionID         string             `json:"session_id"`
	MainFinding       string             `json:"main_finding"`
	RequestedTemplate string             `json:"requested_template"`
	Resolution        matcher.Resolution `json:"resolution"`
	Attempts          uint               `json:"attempts"`
	Provider          string             `json:"provider"`
	Model             string             `json:"model,omitempty"`
	Duration          time.Duration      `json:"duration"`
	Exchanges         []Exchange         `json:"exchanges,omitempty"`
}

// Template returns the resolved template name, or "free-form".
func (r *Result) Template() string {
	return r.Resolution.String()
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, errors.New("dialogue: client is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("dialogue: catalog is required")
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 && policy.Delay == 0 {
		defaults := retry.Default()
		policy.MaxAttempts = defaults.MaxAttempts
		policy.Delay = defaults.Delay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := cfg.Catalog.Keys()
	return &Orchestrator{
		client:         cfg.Client,
		catalog:        cfg.Catalog,
		keys:           keys,
		matcher:        matcher.New(cfg.Threshold),
		policy:         policy,
		logger:         logger,
		recorder:       cfg.Recorder,
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		options:        maps.Clone(cfg.Options),
		classifyPrompt: classify.SystemPrompt(keys),
	}, nil
}

// Catalog returns the template catalog.
func (o *Orchestrator) Catalog() *templates.Catalog {
	return o.catalog
}

// Provider returns the name of the model client.
func (o *Orchestrator) Provider() string {
	return o.client.Name()
}

// Model returns the configured model ("" = client default).
func (o *Orchestrator) Model() string {
	return o.model
}

// Policy returns the retry policy.
func (o *Orchestrator) Policy() retry.Policy {
	return o.policy
}

// Resolve resolves a template name the way a dialogue would.
func (o *Orchestrator) Resolve(name string) matcher.Resolution {
	return o.matcher.Resolve(o.keys, name)
}

// Structure converts report into structured form.
//
// Every attempt runs both calls; any failure discards the attempt and, after
// the policy's delay, starts over. When attempts are exhausted the error is
// a *RemoteError. Cancelling ctx stops waiting and returns ctx's error.
func (o *Orchestrator) Structure(ctx context.Context, report string) (*Result, error) {
	if strings.TrimSpace(report) == "" {
		return nil, ErrEmptyReport
	}

	start := time.Now()
	sessionID := uuid.New().String()
	logger := o.logger.With("session_id", sessionID)

	policy := o.policy
	onRetry := policy.OnRetry
	maxAttempts := policy.Attempts()
	policy.OnRetry = func(attempt uint, err error) {
		if attempt < maxAttempts {
			logger.Warn("dialogue attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay", policy.Delay,
				"error", err)
		} else {
			logger.Error("dialogue attempts exhausted", "attempts", attempt, "error", err)
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var session *Session
	var reply Reply
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt uint) error {
		s := newSession(sessionID, attempt, report)
		r, err := o.run(ctx, logger, s)
		if err != nil {
			return err
		}
		session, reply = s, r
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("structure report: %w", ctxErr)
		}
		if errors.Is(err, structure.ErrUnknownTemplate) {
			return nil, fmt.Errorf("structure report: %w", err)
		}
		return nil, &RemoteError{Attempts: attempts, Err: err}
	}

	result := &Result{
		Kind:              reply.Kind,
		Data:              reply.Data,
		Document:          reply.Document,
		Text:              reply.Text,
		SessionID:         sessionID,
		MainFinding:       session.MainFinding,
		RequestedTemplate: session.RequestedTemplate,
		Resolution:        session.Resolution,
		Attempts:          attempts,
		Provider:          o.client.Name(),
		Model:             o.model,
		Duration:          time.Since(start),
		Exchanges:         session.Exchanges,
	}

	logger.Info("structured report",
		"kind", result.Kind,
		"template", result.Template(),
		"main_finding", result.MainFinding,
		"attempts", attempts,
		"duration", result.Duration)

	return result, nil
}

// run performs one attempt: classify, resolve, structure.
func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, s *Session) (Reply, error) {
	answer, err := o.chat(ctx, s, llmcall.StageClassify, classify.SystemPromptKey, o.classifyPrompt)
	if err != nil {
		return Reply{}, fmt.Errorf("classification call: %w", err)
	}

	c, ok := ExtractClassification(answer)
	if !ok {
		logger.Warn("classification reply not understood, using free-form",
			"attempt", s.Attempt,
			"reply", answer)
	}
	s.MainFinding = c.MainFinding
	s.RequestedTemplate = c.Template
	s.Resolution = o.matcher.Resolve(o.keys, c.Template)

	logger.Debug("resolved template",
		"attempt", s.Attempt,
		"requested", s.RequestedTemplate,
		"template", s.Resolution.String(),
		"similarity", s.Resolution.Similarity)

	system, key, err := structure.SystemPrompt(o.catalog, s.Resolution)
	if err != nil {
		return Reply{}, retry.Permanent(err)
	}

	answer, err = o.chat(ctx, s, llmcall.StageStructure, key, system)
	if err != nil {
		return Reply{}, fmt.Errorf("structuring call: %w", err)
	}

	reply := ParseReply(answer)
	if reply.Kind == KindDegraded {
		logger.Warn("structuring reply is not a JSON object, returning text", "attempt", s.Attempt)
	}
	return reply, nil
}

// chat sends [system, user: report] and records the call.
func (o *Orchestrator) chat(ctx context.Context, s *Session, stage, promptKey, system string) (string, error) {
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			providers.SystemMessage(system),
			providers.UserMessage(s.Report),
		},
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Options:     maps.Clone(o.options),
		RequestID:   uuid.New().String(),
	}

	result, err := o.client.Chat(ctx, req)
	callID := o.recorder.Record(result, llmcall.RecordOptions{
		SessionID:   s.ID,
		Attempt:     int(s.Attempt),
		Stage:       stage,
		PromptKey:   promptKey,
		PromptHash:  prompts.HashText(system),
		Temperature: o.temperature,
	})
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("%s returned no result", o.client.Name())
	}

	s.Exchanges = append(s.Exchanges, Exchange{
		Stage:     stage,
		PromptKey: promptKey,
		System:    system,
		Reply:     result.Content,
		CallID:    callID,
	})
	return result.Content, nil
}

// RegisterPrompts registers every prompt a dialogue uses.
func RegisterPrompts(r *prompts.Registry) {
	classify.RegisterPrompts(r)
	structure.RegisterPrompts(r)
}
