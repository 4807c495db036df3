package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/modelrelay/modelrelay/services/providers"
	"go.uber.org/zap"
)

var (
	// ErrNoProviderAvailable is returned when no credentialed provider with
	// remaining quota offers the requested capability
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrProviderNotUsable is returned when an explicitly requested provider
	// lacks a live credential
	ErrProviderNotUsable = errors.New("provider not usable")

	// ErrQuotaExhausted is returned when an explicitly requested provider has
	// no remaining capacity
	ErrQuotaExhausted = errors.New("provider quota exhausted")
)

// Goal is the caller's optimization goal for provider selection
type Goal string

const (
	GoalCost    Goal = "cost"
	GoalSpeed   Goal = "speed"
	GoalQuality Goal = "quality"
)

// ParseGoal converts a wire string into a Goal; empty means quality
func ParseGoal(s string) (Goal, bool) {
	switch Goal(s) {
	case GoalCost, GoalSpeed, GoalQuality:
		return Goal(s), true
	case "":
		return GoalQuality, true
	}
	return "", false
}

// QuotaReader exposes the tracker's read side
type QuotaReader interface {
	Remaining(providerID string) int
	Allow(providerID string) bool
}

// Config holds routing configuration
type Config struct {
	// SpeedProviderID is promoted to the front of speed-goal rankings when
	// present. A configured heuristic, not a measured latency ranking.
	SpeedProviderID string
}

// Service ranks and picks providers for a requested capability. All methods
// are side-effect free reads over the registry and quota tracker.
type Service struct {
	registry *providers.Registry
	quota    QuotaReader
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a routing service
func NewService(registry *providers.Registry, quota QuotaReader, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		quota:    quota,
		cfg:      cfg,
		logger:   logger,
	}
}

// Available returns registered providers holding a live credential, still
// sorted by priority ascending
func (s *Service) Available() []providers.Descriptor {
	var out []providers.Descriptor
	for _, d := range s.registry.List() {
		if s.registry.HasCredential(d) {
			out = append(out, d)
		}
	}
	return out
}

// IsUsable reports whether a provider has a credential and remaining daily
// quota
func (s *Service) IsUsable(providerID string) bool {
	d, err := s.registry.Get(providerID)
	if err != nil {
		return false
	}
	return s.registry.HasCredential(d) && s.quota.Remaining(providerID) > 0
}

// SelectBest picks the provider for a capability under the given goal,
// optionally dropping providers above maxCostPer1K. Providers without a
// credential or without remaining quota are never candidates.
func (s *Service) SelectBest(capability providers.Capability, goal Goal, maxCostPer1K float64) (providers.Descriptor, error) {
	list := s.candidates(capability)

	if maxCostPer1K > 0 {
		filtered := list[:0]
		for _, d := range list {
			if d.Pricing.CostPer1KTokens <= maxCostPer1K {
				filtered = append(filtered, d)
			}
		}
		list = filtered
	}

	if len(list) == 0 {
		return providers.Descriptor{}, fmt.Errorf("%w for capability %s", ErrNoProviderAvailable, capability)
	}

	switch goal {
	case GoalCost:
		// candidates are already priority-sorted, so a stable sort keeps
		// priority as the tiebreak
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Pricing.CostPer1KTokens < list[j].Pricing.CostPer1KTokens
		})
	case GoalSpeed:
		s.promoteSpeedProvider(list)
	default:
		// quality or unspecified: the registry's priority order is the
		// quality proxy
	}

	chosen := list[0]
	s.logger.Debug("provider selected",
		zap.String("provider", chosen.ID),
		zap.String("capability", string(capability)),
		zap.String("goal", string(goal)))

	return chosen, nil
}

// SelectExplicit bypasses ranking for a caller-named provider. The provider
// is returned iff it is registered, credentialed and under quota; it is
// never silently substituted.
func (s *Service) SelectExplicit(providerID string, capability providers.Capability) (providers.Descriptor, error) {
	d, err := s.registry.Get(providerID)
	if err != nil {
		return providers.Descriptor{}, err
	}
	if !d.Capabilities.Has(capability) {
		return providers.Descriptor{}, fmt.Errorf("%w: %s does not support %s", ErrProviderNotUsable, providerID, capability)
	}
	if !s.registry.HasCredential(d) {
		return providers.Descriptor{}, fmt.Errorf("%w: %s has no credential", ErrProviderNotUsable, providerID)
	}
	if !s.quota.Allow(providerID) {
		return providers.Descriptor{}, fmt.Errorf("%w: %s", ErrQuotaExhausted, providerID)
	}
	return d, nil
}

// BuildFallbackChain returns the retry candidates for a capability in
// priority order, with no goal re-ranking. Length capping is the caller's
// concern.
func (s *Service) BuildFallbackChain(capability providers.Capability) []providers.Descriptor {
	return s.candidates(capability)
}

// candidates returns credentialed, capability-matching providers with
// remaining capacity, priority-sorted. Quota-exhausted providers are pruned
// here, before any call is attempted.
func (s *Service) candidates(capability providers.Capability) []providers.Descriptor {
	var out []providers.Descriptor
	for _, d := range s.Available() {
		if !d.Capabilities.Has(capability) {
			continue
		}
		if !s.quota.Allow(d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// promoteSpeedProvider moves the configured low-latency provider to the
// front when present; otherwise the list keeps its priority order
func (s *Service) promoteSpeedProvider(list []providers.Descriptor) {
	if s.cfg.SpeedProviderID == "" {
		return
	}
	for i, d := range list {
		if d.ID == s.cfg.SpeedProviderID {
			head := list[i]
			copy(list[1:i+1], list[:i])
			list[0] = head
			return
		}
	}
}
