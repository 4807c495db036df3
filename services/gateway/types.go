package gateway

import (
	"github.com/modelrelay/modelrelay/services/failover"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/routing"
)

// CompletionRequest is the normalized inbound request. It arrives already
// validated and sanitized by the HTTP layer.
type CompletionRequest struct {
	// RequestID correlates logs and usage records; generated when empty
	RequestID string

	// Capability defaults to chat
	Capability providers.Capability

	Messages     []providers.Message
	SystemPrompt string

	// Provider, when set, bypasses ranking: that provider is used iff it is
	// usable, never silently substituted
	Provider string

	// Model is forwarded to providers that list it
	Model string

	// Goal picks the ranking order; empty means the configured default
	Goal routing.Goal

	// MaxCostPer1K drops providers above this price, when positive
	MaxCostPer1K float64

	Temperature float64
	MaxTokens   int
}

// CompletionResult is the caller-visible outcome of a successful request
type CompletionResult struct {
	RequestID string                     `json:"request_id"`
	Result    *providers.CanonicalResult `json:"result"`

	// Attempts lists the failed tries that preceded the success, if any
	Attempts []failover.Attempt `json:"attempts,omitempty"`
}
