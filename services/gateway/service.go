package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/modelrelay/modelrelay/models"
	"github.com/modelrelay/modelrelay/services"
	"github.com/modelrelay/modelrelay/services/failover"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/routing"
	"go.uber.org/zap"
)

// Router selects providers and builds fallback chains
type Router interface {
	SelectBest(capability providers.Capability, goal routing.Goal, maxCostPer1K float64) (providers.Descriptor, error)
	SelectExplicit(providerID string, capability providers.Capability) (providers.Descriptor, error)
	BuildFallbackChain(capability providers.Capability) []providers.Descriptor
}

// FallbackController drives a request through its fallback chain
type FallbackController interface {
	ExecuteWithFallback(ctx context.Context, spec providers.RequestSpec, primary providers.Descriptor, chain []providers.Descriptor) (*failover.Result, error)
}

// UsageStore persists completed requests. May be nil when no database is
// configured.
type UsageStore interface {
	RecordCompletion(ctx context.Context, rec models.UsageRecord) error
}

// Config holds gateway orchestration settings
type Config struct {
	RequestTimeout      time.Duration
	DefaultGoal         routing.Goal
	DefaultSystemPrompt string
}

// Service orchestrates a completion request: select a provider, execute with
// fallback, persist the outcome. It owns explicit references to its
// collaborators; there is no module-level shared state.
type Service struct {
	router   Router
	fallback FallbackController
	usage    UsageStore
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a gateway service. usage may be nil.
func NewService(router Router, fallback FallbackController, usage UsageStore, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		router:   router,
		fallback: fallback,
		usage:    usage,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessCompletion routes one request through selection, execution and
// fallback. It returns a complete CompletionResult or a DomainError; only
// configuration, quota and aggregate errors cross this boundary.
func (s *Service) ProcessCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Capability == "" {
		req.Capability = providers.CapabilityChat
	}
	if len(req.Messages) == 0 {
		return nil, services.NewValidationError("request contains no messages")
	}

	goal := req.Goal
	if goal == "" {
		goal = s.cfg.DefaultGoal
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()

	s.logger.Info("routing completion request",
		zap.String("request_id", req.RequestID),
		zap.String("capability", string(req.Capability)),
		zap.String("goal", string(goal)),
		zap.String("explicit_provider", req.Provider))

	primary, chain, err := s.selectCandidates(req, goal)
	if err != nil {
		return nil, err
	}

	spec := providers.RequestSpec{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}
	if spec.SystemPrompt == "" {
		spec.SystemPrompt = s.cfg.DefaultSystemPrompt
	}

	result, err := s.fallback.ExecuteWithFallback(ctx, spec, primary, chain)
	if err != nil {
		var aggErr *failover.AggregateError
		if errors.As(err, &aggErr) {
			s.persistFailure(req, primary, aggErr, time.Since(start))
			return nil, services.NewAggregateError("all providers failed", aggErr).
				WithDetail("code", services.CodeAllProvidersFailed).
				WithDetail("attempts", aggErr.Attempts)
		}
		return nil, services.NewInternalError("fallback execution failed", err)
	}

	s.persistSuccess(req, result)

	s.logger.Info("completion request finished",
		zap.String("request_id", req.RequestID),
		zap.String("provider", result.Canonical.ProviderID),
		zap.Int("fallback_attempts", len(result.Attempts)),
		zap.Int("total_tokens", result.Canonical.Usage.TotalTokens),
		zap.Float64("cost", result.Canonical.Usage.Cost),
		zap.Duration("elapsed", time.Since(start)))

	return &CompletionResult{
		RequestID: req.RequestID,
		Result:    result.Canonical,
		Attempts:  result.Attempts,
	}, nil
}

// selectCandidates resolves the primary provider and fallback chain. An
// explicit provider request gets no chain: substituting another provider's
// output for a named choice would contradict the bypass contract.
func (s *Service) selectCandidates(req *CompletionRequest, goal routing.Goal) (providers.Descriptor, []providers.Descriptor, error) {
	if req.Provider != "" {
		d, err := s.router.SelectExplicit(req.Provider, req.Capability)
		if err != nil {
			if errors.Is(err, routing.ErrQuotaExhausted) {
				return providers.Descriptor{}, nil, services.NewDomainError(services.ErrorTypeQuotaExceeded, err.Error(), err)
			}
			return providers.Descriptor{}, nil, services.NewConfigurationError(err.Error()).
				WithDetail("code", services.CodeNoProviderAvailable).
				WithDetail("provider", req.Provider)
		}
		return d, nil, nil
	}

	primary, err := s.router.SelectBest(req.Capability, goal, req.MaxCostPer1K)
	if err != nil {
		return providers.Descriptor{}, nil, services.NewConfigurationError(err.Error()).
			WithDetail("code", services.CodeNoProviderAvailable).
			WithDetail("capability", string(req.Capability))
	}

	return primary, s.router.BuildFallbackChain(req.Capability), nil
}

// persistSuccess records the completed request. Persistence failures are
// logged, never surfaced; the result is already final.
func (s *Service) persistSuccess(req *CompletionRequest, result *failover.Result) {
	if s.usage == nil {
		return
	}

	rec := models.UsageRecord{
		RequestID:        req.RequestID,
		Provider:         result.Canonical.ProviderID,
		Model:            result.Canonical.Model,
		Status:           models.UsageStatusCompleted,
		PromptTokens:     result.Canonical.Usage.PromptTokens,
		CompletionTokens: result.Canonical.Usage.CompletionTokens,
		TotalTokens:      result.Canonical.Usage.TotalTokens,
		Cost:             result.Canonical.Usage.Cost,
		Currency:         result.Canonical.Usage.Currency,
		LatencyMs:        int(result.Canonical.Latency.Milliseconds()),
		Attempts:         len(result.Attempts) + 1,
	}

	s.record(rec)
}

// persistFailure records an exhausted fallback chain
func (s *Service) persistFailure(req *CompletionRequest, primary providers.Descriptor, aggErr *failover.AggregateError, elapsed time.Duration) {
	if s.usage == nil {
		return
	}

	rec := models.UsageRecord{
		RequestID: req.RequestID,
		Provider:  primary.ID,
		Model:     req.Model,
		Status:    models.UsageStatusFailed,
		ErrorCode: services.CodeAllProvidersFailed,
		LatencyMs: int(elapsed.Milliseconds()),
		Attempts:  len(aggErr.Attempts),
	}

	s.record(rec)
}

func (s *Service) record(rec models.UsageRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.usage.RecordCompletion(ctx, rec); err != nil {
			s.logger.Error("failed to persist usage record",
				zap.String("request_id", rec.RequestID),
				zap.Error(err))
		}
	}()
}
