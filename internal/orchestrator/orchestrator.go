// Package orchestrator drives an ordered chain of generation providers.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/vital-labs/internal/metrics"
	"github.com/ashureev/vital-labs/internal/provider"
)

// FallbackProvider is reported as ProviderUsed when the chain is exhausted.
const FallbackProvider = "fallback"

// ErrNoProviders means the plan has nothing to attempt. It is a configuration
// problem, not a provider failure.
var ErrNoProviders = errors.New("no generation providers configured")

// Entry is one position in the chain.
type Entry struct {
	Provider    provider.Provider
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// Attempt records one provider call.
type Attempt struct {
	ProviderID string               `json:"provider_id"`
	Model      string               `json:"model"`
	StartedAt  time.Time            `json:"started_at"`
	Timeout    time.Duration        `json:"timeout"`
	Duration   time.Duration        `json:"duration"`
	Failure    provider.FailureKind `json:"failure,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Plan is one orchestration request.
type Plan struct {
	System   string
	Message  string
	Entries  []Entry
	Fallback string // returned when every entry fails; empty disables it
	Locale   string // expected reply language; empty skips normalization
}

// Result is the outcome of a plan.
type Result struct {
	Text         string
	ProviderUsed string
	Model        string
	Attempts     []Attempt
	Exhausted    bool
	Translated   bool
}

// Override forces a provider and/or model ahead of the configured chain.
type Override struct {
	Provider string
	Model    string
}

// Orchestrator resolves chains against a registry and runs plans.
type Orchestrator struct {
	registry *provider.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an orchestrator.
func New(registry *provider.Registry, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = provider.NewRegistry()
	}
	return &Orchestrator{registry: registry, logger: logger, metrics: m, now: time.Now}
}

// Resolve turns provider ids into chain entries, skipping ids that are not
// registered. A forced provider is placed first; a forced model without a
// provider applies to the first resolvable chain provider. The forced entry
// replaces an identical provider+model entry later in the chain.
func (o *Orchestrator) Resolve(ids []string, ov Override) []Entry {
	var entries []Entry
	for _, id := range ids {
		reg, ok := o.registry.Lookup(id)
		if !ok {
			o.logger.Debug("Chain provider not registered", "provider", id)
			continue
		}
		entries = append(entries, entryFor(reg))
	}

	forcedID := strings.TrimSpace(ov.Provider)
	forcedModel := strings.TrimSpace(ov.Model)
	if forcedID == "" && forcedModel == "" {
		return entries
	}

	var forced Entry
	switch {
	case forcedID != "":
		reg, ok := o.registry.Lookup(forcedID)
		if !ok {
			o.logger.Warn("Forced provider not registered, using configured chain", "provider", forcedID)
			return entries
		}
		forced = entryFor(reg)
	case len(entries) > 0:
		forced = entries[0]
	default:
		return entries
	}
	if forcedModel != "" {
		forced.Model = forcedModel
	}

	out := []Entry{forced}
	for _, e := range entries {
		if e.Provider.ID() == forced.Provider.ID() && e.Model == forced.Model {
			continue
		}
		out = append(out, e)
	}
	return out
}

func entryFor(reg provider.Registered) Entry {
	return Entry{
		Provider:    reg.Provider,
		Model:       reg.Settings.Model,
		Timeout:     reg.Settings.Timeout,
		MaxTokens:   reg.Settings.MaxTokens,
		Temperature: reg.Settings.Temperature,
	}
}

// Run attempts entries strictly in order, each under its own timeout, and
// stops at the first success. When every entry fails the plan's fallback is
// returned with ProviderUsed set to FallbackProvider; without a fallback the
// result is Exhausted with empty text. Cancellation of ctx aborts the chain
// and returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Result, error) {
	if len(plan.Entries) == 0 {
		return nil, ErrNoProviders
	}

	res := &Result{}
	for _, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, attempt := o.attempt(ctx, entry, provider.Request{
			System:      plan.System,
			Message:     plan.Message,
			Model:       entry.Model,
			MaxTokens:   entry.MaxTokens,
			Temperature: entry.Temperature,
		})
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Failure == "" {
			res.Text = text
			res.ProviderUsed = entry.Provider.ID()
			res.Model = entry.Model
			if plan.Locale != "" && !MatchesLocale(text, plan.Locale) {
				if translated, ok := o.translate(ctx, entry, text, plan.Locale); ok {
					res.Text = translated
					res.Translated = true
				}
			}
			return res, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	res.Exhausted = true
	if plan.Fallback != "" {
		res.Text = plan.Fallback
		res.ProviderUsed = FallbackProvider
	}
	o.logger.Warn("All providers exhausted", "attempts", len(res.Attempts))
	return res, nil
}

func (o *Orchestrator) attempt(ctx context.Context, entry Entry, req provider.Request) (string, Attempt) {
	id := entry.Provider.ID()
	a := Attempt{ProviderID: id, Model: entry.Model, StartedAt: o.now(), Timeout: entry.Timeout}

	actx := ctx
	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	text, err := entry.Provider.Attempt(actx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = provider.NewError(id, provider.KindMalformedResponse, provider.ErrEmptyResponse)
	}
	a.Duration = time.Since(a.StartedAt)

	if err != nil {
		a.Failure = provider.Classify(err)
		if a.Failure == provider.KindTransportError && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			a.Failure = provider.KindTimeout
		}
		a.Error = err.Error()
		o.metrics.ObserveAttempt(id, string(a.Failure), a.Duration)
		o.logger.Warn("Provider attempt failed",
			"provider", id,
			"model", entry.Model,
			"failure", a.Failure,
			"duration", a.Duration,
			"error", err,
		)
		return "", a
	}

	o.metrics.ObserveAttempt(id, "success", a.Duration)
	o.logger.Info("Provider attempt succeeded", "provider", id, "model", entry.Model, "duration", a.Duration)
	return strings.TrimSpace(text), a
}
