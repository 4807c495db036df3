package providers

import (
	"time"
)

// Capability is a feature a provider declares support for
type Capability string

const (
	CapabilityChat            Capability = "chat"
	CapabilityCodeGeneration  Capability = "code_generation"
	CapabilityImageGeneration Capability = "image_generation"
	CapabilityEmbeddings      Capability = "embeddings"
)

// ParseCapability converts a wire string into a Capability
func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityChat, CapabilityCodeGeneration, CapabilityImageGeneration, CapabilityEmbeddings:
		return Capability(s), true
	}
	return "", false
}

// CapabilitySet is the set of capabilities a provider supports
type CapabilitySet []Capability

// Has reports set membership
func (cs CapabilitySet) Has(c Capability) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}

// RateLimit declares a provider's request budget
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerDay    int `json:"requests_per_day"`
}

// Pricing holds a provider's blended token pricing
type Pricing struct {
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
	Currency        string  `json:"currency"`
}

// Dialect identifies the wire format a provider speaks. It selects both the
// request payload builder and the response parser.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
	DialectCohere    Dialect = "cohere"
)

// Descriptor describes a single upstream AI provider. Descriptors are
// immutable after process start; all consumers iterate them generically, so
// adding a provider means adding a catalog entry and, for a new wire format,
// one response parser.
type Descriptor struct {
	// ID is the stable identifier used in requests, quotas and usage records
	ID string `json:"id"`

	// Name is the human-readable provider name
	Name string `json:"name"`

	// BaseURL is the API root, without a trailing slash
	BaseURL string `json:"base_url"`

	// CredentialEnv names the environment variable holding the API key
	CredentialEnv string `json:"-"`

	// Models is the ordered list of supported model identifiers; the first
	// entry is the default when a request names none
	Models []string `json:"models"`

	// Priority orders providers; lower is preferred. Acts as the quality
	// proxy for ranking.
	Priority int `json:"priority"`

	RateLimit    RateLimit     `json:"rate_limit"`
	Capabilities CapabilitySet `json:"capabilities"`
	Pricing      Pricing       `json:"pricing"`

	Dialect Dialect `json:"-"`
}

// DefaultModel returns the provider's first configured model
func (d Descriptor) DefaultModel() string {
	if len(d.Models) == 0 {
		return ""
	}
	return d.Models[0]
}

// SupportsModel reports whether the descriptor lists the given model
func (d Descriptor) SupportsModel(model string) bool {
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Message is a single turn in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestSpec is the normalized request handed to the executor. It is
// transient, one per inbound call, already validated by the HTTP layer.
type RequestSpec struct {
	// Messages is the conversation so far
	Messages []Message

	// SystemPrompt, when set, is prefixed to the conversation
	SystemPrompt string

	// Model overrides the provider's default model when it is supported
	Model string

	Temperature float64
	MaxTokens   int
}

// Usage holds token accounting and derived cost for one completion
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`
}

// CanonicalResult is the provider-agnostic shape every successful completion
// is normalized into. Immutable once produced; a result is either complete
// and well-formed or absent.
type CanonicalResult struct {
	ID           string        `json:"id"`
	ProviderID   string        `json:"provider_id"`
	Model        string        `json:"model"`
	Content      string        `json:"content"`
	Usage        Usage         `json:"usage"`
	FinishReason string        `json:"finish_reason"`
	Timestamp    time.Time     `json:"timestamp"`
	Latency      time.Duration `json:"latency"`
}
