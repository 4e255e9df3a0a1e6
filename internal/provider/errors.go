package provider

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a provider attempt failed.
type FailureKind string

const (
	KindTimeout           FailureKind = "timeout"
	KindRateLimited       FailureKind = "rate_limited"
	KindQuotaExceeded     FailureKind = "quota_exceeded"
	KindMalformedResponse FailureKind = "malformed_response"
	KindTransportError    FailureKind = "transport_error"
)

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified failure.
func NewError(providerID string, kind FailureKind, err error) *Error {
	return &Error{Provider: providerID, Kind: kind, Err: err}
}

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = errors.New("empty response")

// Classify maps any attempt error to a failure kind. Unclassified errors are
// treated as transport errors; deadline errors are timeouts.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrEmptyResponse) {
		return KindMalformedResponse
	}
	return KindTransportError
}

// kindForStatus maps HTTP status codes shared by OpenAI-compatible gateways.
func kindForStatus(status int) FailureKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 402:
		return KindQuotaExceeded
	case status == 408 || status == 504:
		return KindTimeout
	default:
		return KindTransportError
	}
}
