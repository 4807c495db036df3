package providers

import "strings"

// ApplyOverrides returns a copy of the descriptors with per-provider
// environment overrides applied: PROVIDER_<ID>_BASE_URL replaces the base URL
// and PROVIDER_<ID>_CREDENTIAL_ENV renames the credential variable.
func ApplyOverrides(descriptors []Descriptor, lookup func(string) (string, bool)) []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)

	for i, d := range out {
		prefix := "PROVIDER_" + strings.ToUpper(d.ID)
		if v, ok := lookup(prefix + "_BASE_URL"); ok && v != "" {
			out[i].BaseURL = strings.TrimRight(v, "/")
		}
		if v, ok := lookup(prefix + "_CREDENTIAL_ENV"); ok && v != "" {
			out[i].CredentialEnv = v
		}
	}

	return out
}

// DefaultCatalog returns the static provider catalog. Priority drives the
// quality ordering; pricing is a blended per-1K-token figure used for cost
// ranking and usage accounting.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{
			ID:            "openrouter",
			Name:          "OpenRouter",
			BaseURL:       "https://openrouter.ai/api/v1",
			CredentialEnv: "OPENROUTER_API_KEY",
			Models:        []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet", "meta-llama/llama-3.1-70b-instruct"},
			Priority:      1,
			RateLimit:     RateLimit{RequestsPerMinute: 60, RequestsPerDay: 5000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration, CapabilityImageGeneration},
			Pricing:       Pricing{CostPer1KTokens: 0.005, Currency: "USD"},
			Dialect:       DialectOpenAI,
		},
		{
			ID:            "openai",
			Name:          "OpenAI",
			BaseURL:       "https://api.openai.com/v1",
			CredentialEnv: "OPENAI_API_KEY",
			Models:        []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
			Priority:      2,
			RateLimit:     RateLimit{RequestsPerMinute: 60, RequestsPerDay: 10000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration, CapabilityEmbeddings},
			Pricing:       Pricing{CostPer1KTokens: 0.0075, Currency: "USD"},
			Dialect:       DialectOpenAI,
		},
		{
			ID:            "anthropic",
			Name:          "Anthropic",
			BaseURL:       "https://api.anthropic.com",
			CredentialEnv: "ANTHROPIC_API_KEY",
			Models:        []string{"claude-3-5-sonnet-20241022", "claude-3-haiku-20240307"},
			Priority:      3,
			RateLimit:     RateLimit{RequestsPerMinute: 50, RequestsPerDay: 8000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration},
			Pricing:       Pricing{CostPer1KTokens: 0.009, Currency: "USD"},
			Dialect:       DialectAnthropic,
		},
		{
			ID:            "cohere",
			Name:          "Cohere",
			BaseURL:       "https://api.cohere.ai",
			CredentialEnv: "COHERE_API_KEY",
			Models:        []string{"command-r-plus", "command-r"},
			Priority:      4,
			RateLimit:     RateLimit{RequestsPerMinute: 40, RequestsPerDay: 4000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityEmbeddings},
			Pricing:       Pricing{CostPer1KTokens: 0.004, Currency: "USD"},
			Dialect:       DialectCohere,
		},
		{
			ID:            "groq",
			Name:          "Groq",
			BaseURL:       "https://api.groq.com/openai/v1",
			CredentialEnv: "GROQ_API_KEY",
			Models:        []string{"llama-3.1-70b-versatile", "mixtral-8x7b-32768"},
			Priority:      5,
			RateLimit:     RateLimit{RequestsPerMinute: 30, RequestsPerDay: 3000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration},
			Pricing:       Pricing{CostPer1KTokens: 0.0008, Currency: "USD"},
			Dialect:       DialectOpenAI,
		},
		{
			ID:            "together",
			Name:          "Together AI",
			BaseURL:       "https://api.together.xyz/v1",
			CredentialEnv: "TOGETHER_API_KEY",
			Models:        []string{"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo", "Qwen/Qwen2.5-72B-Instruct-Turbo"},
			Priority:      6,
			RateLimit:     RateLimit{RequestsPerMinute: 60, RequestsPerDay: 6000},
			Capabilities:  CapabilitySet{CapabilityChat, CapabilityCodeGeneration, CapabilityImageGeneration},
			Pricing:       Pricing{CostPer1KTokens: 0.0009, Currency: "USD"},
			Dialect:       DialectOpenAI,
		},
	}
}
