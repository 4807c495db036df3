package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageStatus is the terminal state of a routed request
type UsageStatus string

const (
	UsageStatusCompleted UsageStatus = "completed"
	UsageStatusFailed    UsageStatus = "failed"
)

// UsageRecord is one persisted row per completed logical request, success or
// failure. It is the durable side of cost/usage tracking; the in-memory quota
// counters stay authoritative for admission.
type UsageRecord struct {
	ID        uuid.UUID   `json:"id"`
	RequestID string      `json:"request_id"`
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Status    UsageStatus `json:"status"`

	// ErrorCode is set for failed requests (e.g. ALL_PROVIDERS_FAILED)
	ErrorCode string `json:"error_code,omitempty"`

	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`

	LatencyMs int `json:"latency_ms"`

	// Attempts is the number of providers tried, primary included
	Attempts int `json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
}
