// Package provider adapts text-generation backends to a single interface.
package provider

import (
	"context"
	"time"
)

// Request is one generation call.
type Request struct {
	System      string
	Message     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Provider generates a reply. Implementations must return *Error (or an
// error wrapping it) for failures they can classify, and must honor ctx.
type Provider interface {
	ID() string
	Attempt(ctx context.Context, req Request) (string, error)
}

// HealthChecker is implemented by providers that can report reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Settings are the per-provider call parameters from configuration.
type Settings struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}
