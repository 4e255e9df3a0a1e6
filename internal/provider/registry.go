package provider

import (
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ashureev/vital-labs/internal/config"
)

// Registered is a provider with its configured call settings.
type Registered struct {
	Provider Provider
	Settings Settings
}

// Registry holds the providers that were successfully constructed.
type Registry struct {
	entries map[string]Registered
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registered)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider, s Settings) {
	r.entries[p.ID()] = Registered{Provider: p, Settings: s}
}

// Lookup returns the provider registered under id.
func (r *Registry) Lookup(id string) (Registered, bool) {
	if r == nil {
		return Registered{}, false
	}
	e, ok := r.entries[id]
	return e, ok
}

// IDs returns registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HealthCheckers returns the registered providers that can report
// reachability, keyed by id.
func (r *Registry) HealthCheckers() map[string]HealthChecker {
	out := make(map[string]HealthChecker)
	for id, e := range r.entries {
		if hc, ok := e.Provider.(HealthChecker); ok {
			out[id] = hc
		}
	}
	return out
}

// Close releases providers that hold connections.
func (r *Registry) Close() {
	for id, e := range r.entries {
		if c, ok := e.Provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close provider", "provider", id, "error", err)
			}
		}
	}
}

// BuildRegistry constructs every configured provider. Providers that cannot
// be used (missing API key, unreachable sidecar) are skipped with a warning so
// the remaining chain still serves.
func BuildRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()
	httpClient := &http.Client{}

	for id, pc := range cfg.Providers {
		settings := Settings{
			Model:       pc.Model,
			Timeout:     pc.Timeout,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
		}

		switch pc.Kind {
		case config.KindOpenAI:
			if pc.APIKey == "" {
				logger.Warn("Provider disabled: no API key", "provider", id)
				continue
			}
			reg.Register(NewOpenAICompatible(id, pc.BaseURL, pc.APIKey, httpClient), settings)
		case config.KindOllama:
			key := pc.APIKey
			if key == "" {
				key = "ollama"
			}
			reg.Register(NewOpenAICompatible(id, pc.BaseURL, key, httpClient), settings)
		case config.KindSidecar:
			sc, err := NewSidecar(id, DefaultSidecarConfig(pc.Addr), logger)
			if err != nil {
				logger.Warn("Provider disabled: sidecar unavailable", "provider", id, "error", err)
				continue
			}
			reg.Register(sc, settings)
		default:
			logger.Warn("Provider disabled: unknown kind", "provider", id, "kind", pc.Kind)
			continue
		}
		logger.Info("Provider registered", "provider", id, "kind", pc.Kind, "model", pc.Model, "timeout", pc.Timeout)
	}
	return reg
}
