package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCallTimeout = 30 * time.Second

	anthropicVersion = "2023-06-01"

	// maxErrorBodyBytes bounds how much of an error body is kept for diagnostics
	maxErrorBodyBytes = 2048
)

// ProviderError reports a non-2xx response or transport failure from a
// provider. It is always caught by the fallback controller and converted
// into the next fallback step.
type ProviderError struct {
	ProviderID string
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s returned status %d: %s", e.ProviderID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.ProviderID, e.Message)
}

// TimeoutError reports that a provider call exceeded its bounded duration.
// Treated identically to ProviderError for fallback purposes.
type TimeoutError struct {
	ProviderID string
	Timeout    time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s did not respond within %s", e.ProviderID, e.Timeout)
}

// QuotaRecorder records consumed provider capacity. Implemented by the quota
// tracker; every attempted outbound call records exactly once.
type QuotaRecorder interface {
	Record(providerID string)
}

// CredentialSource resolves a descriptor's API key
type CredentialSource interface {
	Credential(d Descriptor) string
}

// Executor issues outbound calls to providers and normalizes their
// heterogeneous responses into CanonicalResults.
type Executor struct {
	credentials CredentialSource
	quota       QuotaRecorder
	client      *http.Client
	callTimeout time.Duration
	logger      *zap.Logger
}

// ExecutorOption customizes an Executor
type ExecutorOption func(*Executor)

// WithHTTPClient overrides the HTTP client, used in tests
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = client
	}
}

// WithCallTimeout overrides the per-call timeout
func WithCallTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.callTimeout = timeout
		}
	}
}

// NewExecutor creates an Executor. The shared HTTP client carries no global
// timeout; each call is bounded by its own context deadline.
func NewExecutor(credentials CredentialSource, quota QuotaRecorder, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		credentials: credentials,
		quota:       quota,
		client:      &http.Client{},
		callTimeout: defaultCallTimeout,
		logger:      logger,
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Execute calls the given provider with the normalized spec and returns the
// canonical result. Quota is recorded once the call is dispatched, whether it
// ultimately succeeds or fails, since it consumed provider capacity.
func (e *Executor) Execute(ctx context.Context, d Descriptor, spec RequestSpec) (*CanonicalResult, error) {
	model := e.resolveModel(d, spec)

	payload, err := buildPayload(d.Dialect, model, spec)
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, Message: err.Error()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.BaseURL+endpointPath(d.Dialect), bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	e.setAuthHeaders(httpReq, d)

	// The attempt consumes provider capacity regardless of outcome
	e.quota.Record(d.ID)

	start := time.Now()
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, &TimeoutError{ProviderID: d.ID, Timeout: e.callTimeout}
		}
		return nil, &ProviderError{ProviderID: d.ID, Message: fmt.Sprintf("transport failure: %v", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, StatusCode: httpResp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &ProviderError{ProviderID: d.ID, StatusCode: httpResp.StatusCode, Message: truncate(respBody, maxErrorBodyBytes)}
	}

	parser, err := ParserFor(d.Dialect)
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, Message: err.Error()}
	}

	parsed, err := parser.Parse(respBody)
	if err != nil {
		return nil, &ProviderError{ProviderID: d.ID, StatusCode: httpResp.StatusCode, Message: err.Error()}
	}

	latency := time.Since(start)
	result := e.canonicalize(d, model, parsed, latency)

	e.logger.Debug("provider call completed",
		zap.String("provider", d.ID),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Float64("cost", result.Usage.Cost),
		zap.Duration("latency", latency))

	return result, nil
}

// resolveModel picks the requested model when the provider lists it, falling
// back to the provider's default; model names are provider-specific, so an
// unknown name must not fail a cross-provider fallback.
func (e *Executor) resolveModel(d Descriptor, spec RequestSpec) string {
	if spec.Model != "" && d.SupportsModel(spec.Model) {
		return spec.Model
	}
	if spec.Model != "" {
		e.logger.Debug("requested model not offered by provider, using default",
			zap.String("provider", d.ID),
			zap.String("requested", spec.Model),
			zap.String("default", d.DefaultModel()))
	}
	return d.DefaultModel()
}

// setAuthHeaders injects the provider credential in its native header shape
func (e *Executor) setAuthHeaders(req *http.Request, d Descriptor) {
	key := e.credentials.Credential(d)
	if d.Dialect == DialectAnthropic {
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", anthropicVersion)
		return
	}
	req.Header.Set("Authorization", "Bearer "+key)
}

// canonicalize converts a parsed response into the canonical result,
// computing cost from token usage
func (e *Executor) canonicalize(d Descriptor, model string, parsed *ParsedResponse, latency time.Duration) *CanonicalResult {
	resultModel := parsed.Model
	if resultModel == "" {
		resultModel = model
	}

	cost := float64(parsed.TotalTokens) / 1000 * d.Pricing.CostPer1KTokens

	return &CanonicalResult{
		ID:         parsed.ID,
		ProviderID: d.ID,
		Model:      resultModel,
		Content:    parsed.Content,
		Usage: Usage{
			PromptTokens:     parsed.PromptTokens,
			CompletionTokens: parsed.CompletionTokens,
			TotalTokens:      parsed.TotalTokens,
			Cost:             cost,
			Currency:         d.Pricing.Currency,
		},
		FinishReason: parsed.FinishReason,
		Timestamp:    time.Now(),
		Latency:      latency,
	}
}

func truncate(b []byte, max int) string {
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
