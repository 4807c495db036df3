package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:            "beta",
			Name:          "Beta",
			CredentialEnv: "BETA_API_KEY",
			Models:        []string{"beta-large", "beta-small"},
			Priority:      2,
			Capabilities:  CapabilitySet{CapabilityChat},
		},
		{
			ID:            "alpha",
			Name:          "Alpha",
			CredentialEnv: "ALPHA_API_KEY",
			Models:        []string{"alpha-1"},
			Priority:      1,
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration},
		},
		{
			ID:            "gamma",
			Name:          "Gamma",
			CredentialEnv: "GAMMA_API_KEY",
			Models:        []string{"gamma-pro"},
			Priority:      3,
			Capabilities:  CapabilitySet{CapabilityChat},
		},
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestNewRegistry_SortsByPriority(t *testing.T) {
	registry, err := NewRegistry(testDescriptors(), zap.NewNop())
	require.NoError(t, err)

	list := registry.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "beta", list[1].ID)
	assert.Equal(t, "gamma", list[2].ID)

	// deterministic: repeated calls yield the same order
	again := registry.List()
	assert.Equal(t, list, again)
}

func TestNewRegistry_RejectsDuplicateIDs(t *testing.T) {
	descriptors := testDescriptors()
	descriptors = append(descriptors, descriptors[0])

	_, err := NewRegistry(descriptors, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestNewRegistry_RejectsEmptyModels(t *testing.T) {
	descriptors := []Descriptor{{ID: "empty", Priority: 1}}

	_, err := NewRegistry(descriptors, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares no models")
}

func TestRegistry_Get(t *testing.T) {
	registry, err := NewRegistry(testDescriptors(), zap.NewNop())
	require.NoError(t, err)

	d, err := registry.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta", d.Name)

	_, err = registry.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderNotFound))
}

func TestRegistry_HasCredential(t *testing.T) {
	registry, err := NewRegistry(testDescriptors(), zap.NewNop(), WithEnvLookup(envLookup(map[string]string{
		"ALPHA_API_KEY": "sk-alpha",
		"BETA_API_KEY":  "",
	})))
	require.NoError(t, err)

	alpha, _ := registry.Get("alpha")
	beta, _ := registry.Get("beta")
	gamma, _ := registry.Get("gamma")

	assert.True(t, registry.HasCredential(alpha))
	assert.False(t, registry.HasCredential(beta), "empty value counts as absent")
	assert.False(t, registry.HasCredential(gamma))

	assert.Equal(t, "sk-alpha", registry.Credential(alpha))
	assert.Empty(t, registry.Credential(gamma))
}

func TestApplyOverrides(t *testing.T) {
	catalog := ApplyOverrides(DefaultCatalog(), envLookup(map[string]string{
		"PROVIDER_OPENAI_BASE_URL":     "https://proxy.internal/openai/",
		"PROVIDER_GROQ_CREDENTIAL_ENV": "GROQ_TOKEN",
		"PROVIDER_UNKNOWN_BASE_URL":    "https://ignored",
		"PROVIDER_ANTHROPIC_BASE_URL":  "",
	}))

	byID := map[string]Descriptor{}
	for _, d := range catalog {
		byID[d.ID] = d
	}

	assert.Equal(t, "https://proxy.internal/openai", byID["openai"].BaseURL, "trailing slash is stripped")
	assert.Equal(t, "GROQ_TOKEN", byID["groq"].CredentialEnv)
	// empty override leaves the default in place
	assert.Equal(t, "https://api.anthropic.com", byID["anthropic"].BaseURL)
	// untouched providers keep their defaults
	assert.Equal(t, "https://api.cohere.ai", byID["cohere"].BaseURL)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.Len(t, catalog, 6)

	registry, err := NewRegistry(catalog, zap.NewNop())
	require.NoError(t, err)

	// openrouter holds the top priority slot
	assert.Equal(t, "openrouter", registry.List()[0].ID)

	for _, d := range catalog {
		assert.NotEmpty(t, d.BaseURL, "provider %s has no base URL", d.ID)
		assert.NotEmpty(t, d.CredentialEnv, "provider %s has no credential env", d.ID)
		assert.NotEmpty(t, d.Dialect, "provider %s has no dialect", d.ID)
		assert.Greater(t, d.Pricing.CostPer1KTokens, 0.0, "provider %s has no pricing", d.ID)
		assert.True(t, d.Capabilities.Has(CapabilityChat), "provider %s cannot chat", d.ID)
	}
}
