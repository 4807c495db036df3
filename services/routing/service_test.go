package routing

import (
	"errors"
	"testing"

	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeQuota allows everything unless a provider is listed as exhausted
type fakeQuota struct {
	exhausted map[string]bool
}

func (f *fakeQuota) Remaining(providerID string) int {
	if f.exhausted[providerID] {
		return 0
	}
	return 100
}

func (f *fakeQuota) Allow(providerID string) bool {
	return !f.exhausted[providerID]
}

func routingDescriptors() []providers.Descriptor {
	return []providers.Descriptor{
		{
			ID:            "first",
			CredentialEnv: "FIRST_KEY",
			Models:        []string{"m1"},
			Priority:      1,
			Capabilities:  providers.CapabilitySet{providers.CapabilityChat, providers.CapabilityCodeGeneration},
			Pricing:       providers.Pricing{CostPer1KTokens: 0.010},
		},
		{
			ID:            "second",
			CredentialEnv: "SECOND_KEY",
			Models:        []string{"m2"},
			Priority:      2,
			Capabilities:  providers.CapabilitySet{providers.CapabilityChat},
			Pricing:       providers.Pricing{CostPer1KTokens: 0.004},
		},
		{
			ID:            "third",
			CredentialEnv: "THIRD_KEY",
			Models:        []string{"m3"},
			Priority:      3,
			Capabilities:  providers.CapabilitySet{providers.CapabilityChat},
			// deliberately tied with second to exercise the priority tiebreak
			Pricing: providers.Pricing{CostPer1KTokens: 0.004},
		},
		{
			ID:            "fast",
			CredentialEnv: "FAST_KEY",
			Models:        []string{"m4"},
			Priority:      4,
			Capabilities:  providers.CapabilitySet{providers.CapabilityChat},
			Pricing:       providers.Pricing{CostPer1KTokens: 0.001},
		},
	}
}

func newTestService(t *testing.T, env map[string]string, quota QuotaReader) *Service {
	t.Helper()

	registry, err := providers.NewRegistry(routingDescriptors(), zap.NewNop(),
		providers.WithEnvLookup(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}))
	require.NoError(t, err)

	if quota == nil {
		quota = &fakeQuota{}
	}

	return NewService(registry, quota, Config{SpeedProviderID: "fast"}, zap.NewNop())
}

func allKeys() map[string]string {
	return map[string]string{
		"FIRST_KEY":  "k1",
		"SECOND_KEY": "k2",
		"THIRD_KEY":  "k3",
		"FAST_KEY":   "k4",
	}
}

func TestAvailable_FiltersMissingCredentials(t *testing.T) {
	svc := newTestService(t, map[string]string{"SECOND_KEY": "k2", "FAST_KEY": "k4"}, nil)

	available := svc.Available()
	require.Len(t, available, 2)
	assert.Equal(t, "second", available[0].ID)
	assert.Equal(t, "fast", available[1].ID)
}

func TestSelectBest_QualityFollowsPriority(t *testing.T) {
	svc := newTestService(t, allKeys(), nil)

	d, err := svc.SelectBest(providers.CapabilityChat, GoalQuality, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", d.ID)
}

func TestSelectBest_CostPicksCheapestWithPriorityTiebreak(t *testing.T) {
	svc := newTestService(t, allKeys(), nil)

	d, err := svc.SelectBest(providers.CapabilityChat, GoalCost, 0)
	require.NoError(t, err)
	assert.Equal(t, "fast", d.ID, "cheapest provider wins under the cost goal")

	// drop the cheapest: second and third tie on price, priority breaks it
	env := allKeys()
	delete(env, "FAST_KEY")
	svc = newTestService(t, env, nil)

	d, err = svc.SelectBest(providers.CapabilityChat, GoalCost, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", d.ID)
}

func TestSelectBest_SpeedPromotesConfiguredProvider(t *testing.T) {
	svc := newTestService(t, allKeys(), nil)

	d, err := svc.SelectBest(providers.CapabilityChat, GoalSpeed, 0)
	require.NoError(t, err)
	assert.Equal(t, "fast", d.ID)

	// when the speed provider is unusable the priority order stands
	env := allKeys()
	delete(env, "FAST_KEY")
	svc = newTestService(t, env, nil)

	d, err = svc.SelectBest(providers.CapabilityChat, GoalSpeed, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", d.ID)
}

func TestSelectBest_MaxCostFilter(t *testing.T) {
	svc := newTestService(t, allKeys(), nil)

	d, err := svc.SelectBest(providers.CapabilityChat, GoalQuality, 0.005)
	require.NoError(t, err)
	assert.Equal(t, "second", d.ID, "providers above the cost ceiling are dropped")

	_, err = svc.SelectBest(providers.CapabilityChat, GoalQuality, 0.0001)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProviderAvailable))
}

func TestSelectBest_SkipsExhaustedProviders(t *testing.T) {
	svc := newTestService(t, allKeys(), &fakeQuota{exhausted: map[string]bool{"first": true}})

	d, err := svc.SelectBest(providers.CapabilityChat, GoalQuality, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", d.ID)
}

func TestSelectBest_CapabilityFiltering(t *testing.T) {
	svc := newTestService(t, allKeys(), nil)

	d, err := svc.SelectBest(providers.CapabilityCodeGeneration, GoalQuality, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", d.ID, "only first declares code generation")

	_, err = svc.SelectBest(providers.CapabilityEmbeddings, GoalQuality, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProviderAvailable))
}

func TestSelectExplicit(t *testing.T) {
	t.Run("usable provider is returned", func(t *testing.T) {
		svc := newTestService(t, allKeys(), nil)

		d, err := svc.SelectExplicit("second", providers.CapabilityChat)
		require.NoError(t, err)
		assert.Equal(t, "second", d.ID)
	})

	t.Run("unregistered provider", func(t *testing.T) {
		svc := newTestService(t, allKeys(), nil)

		_, err := svc.SelectExplicit("ghost", providers.CapabilityChat)
		require.Error(t, err)
		assert.True(t, errors.Is(err, providers.ErrProviderNotFound))
	})

	t.Run("missing capability", func(t *testing.T) {
		svc := newTestService(t, allKeys(), nil)

		_, err := svc.SelectExplicit("second", providers.CapabilityCodeGeneration)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderNotUsable))
	})

	t.Run("missing credential fails instead of substituting", func(t *testing.T) {
		env := allKeys()
		delete(env, "SECOND_KEY")
		svc := newTestService(t, env, nil)

		_, err := svc.SelectExplicit("second", providers.CapabilityChat)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderNotUsable))
	})

	t.Run("exhausted quota", func(t *testing.T) {
		svc := newTestService(t, allKeys(), &fakeQuota{exhausted: map[string]bool{"second": true}})

		_, err := svc.SelectExplicit("second", providers.CapabilityChat)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrQuotaExhausted))
	})
}

func TestBuildFallbackChain_PriorityOrder(t *testing.T) {
	svc := newTestService(t, allKeys(), &fakeQuota{exhausted: map[string]bool{"third": true}})

	chain := svc.BuildFallbackChain(providers.CapabilityChat)
	require.Len(t, chain, 3)
	assert.Equal(t, "first", chain[0].ID)
	assert.Equal(t, "second", chain[1].ID)
	assert.Equal(t, "fast", chain[2].ID)
}

func TestIsUsable(t *testing.T) {
	svc := newTestService(t, map[string]string{"FIRST_KEY": "k1"}, nil)

	assert.True(t, svc.IsUsable("first"))
	assert.False(t, svc.IsUsable("second"), "no credential")
	assert.False(t, svc.IsUsable("ghost"), "not registered")
}

func TestParseGoal(t *testing.T) {
	g, ok := ParseGoal("")
	assert.True(t, ok)
	assert.Equal(t, GoalQuality, g)

	g, ok = ParseGoal("cost")
	assert.True(t, ok)
	assert.Equal(t, GoalCost, g)

	_, ok = ParseGoal("cheapest")
	assert.False(t, ok)
}
