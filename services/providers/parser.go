package providers

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ParsedResponse carries the provider-agnostic fields extracted from one
// provider's native response body. Token counts default to zero when the
// provider omits them.
type ParsedResponse struct {
	ID               string
	Model            string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ResponseParser normalizes one wire dialect's response body. Adding a
// provider that speaks a new dialect means adding one parser here; the
// executor never changes.
type ResponseParser interface {
	Parse(body []byte) (*ParsedResponse, error)
}

// ParserFor selects the parser for a descriptor's dialect
func ParserFor(d Dialect) (ResponseParser, error) {
	switch d {
	case DialectOpenAI:
		return openAIParser{}, nil
	case DialectAnthropic:
		return anthropicParser{}, nil
	case DialectCohere:
		return cohereParser{}, nil
	default:
		return nil, fmt.Errorf("no parser for dialect %q", d)
	}
}

// buildPayload converts the normalized spec into the provider-native request
// body. This is the one place request wire-format differences are absorbed.
func buildPayload(dialect Dialect, model string, spec RequestSpec) (interface{}, error) {
	switch dialect {
	case DialectOpenAI:
		return buildOpenAIPayload(model, spec), nil
	case DialectAnthropic:
		return buildAnthropicPayload(model, spec), nil
	case DialectCohere:
		return buildCoherePayload(model, spec), nil
	default:
		return nil, fmt.Errorf("no payload builder for dialect %q", dialect)
	}
}

// endpointPath returns the chat-completion path for a dialect, relative to
// the provider's base URL
func endpointPath(dialect Dialect) string {
	switch dialect {
	case DialectAnthropic:
		return "/v1/messages"
	case DialectCohere:
		return "/v1/chat"
	default:
		return "/chat/completions"
	}
}

// --- OpenAI-compatible dialect (OpenRouter, OpenAI, Groq, Together) ---

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func buildOpenAIPayload(model string, spec RequestSpec) *openAIChatRequest {
	req := &openAIChatRequest{Model: model}

	if spec.SystemPrompt != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: spec.SystemPrompt})
	}
	for _, m := range spec.Messages {
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	if spec.Temperature > 0 {
		req.Temperature = &spec.Temperature
	}
	if spec.MaxTokens > 0 {
		req.MaxTokens = &spec.MaxTokens
	}

	return req
}

type openAIParser struct{}

func (openAIParser) Parse(body []byte) (*ParsedResponse, error) {
	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("response contains no choices")
	}

	return &ParsedResponse{
		ID:               resp.ID,
		Model:            resp.Model,
		Content:          resp.Choices[0].Message.Content,
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// --- Anthropic dialect ---

const anthropicDefaultMaxTokens = 1024

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func buildAnthropicPayload(model string, spec RequestSpec) *anthropicRequest {
	req := &anthropicRequest{
		Model:     model,
		System:    spec.SystemPrompt,
		MaxTokens: spec.MaxTokens,
	}
	// max_tokens is mandatory on this dialect
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}

	for _, m := range spec.Messages {
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	if spec.Temperature > 0 {
		req.Temperature = &spec.Temperature
	}

	return req
}

type anthropicParser struct{}

func (anthropicParser) Parse(body []byte) (*ParsedResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("response contains no content blocks")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &ParsedResponse{
		ID:               resp.ID,
		Model:            resp.Model,
		Content:          text,
		FinishReason:     resp.StopReason,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// --- Cohere dialect ---

type cohereRequest struct {
	Model       string              `json:"model"`
	Message     string              `json:"message"`
	ChatHistory []cohereChatMessage `json:"chat_history,omitempty"`
	Preamble    string              `json:"preamble,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

type cohereChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereResponse struct {
	ResponseID   string `json:"response_id"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Meta         struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

func buildCoherePayload(model string, spec RequestSpec) *cohereRequest {
	req := &cohereRequest{
		Model:    model,
		Preamble: spec.SystemPrompt,
	}

	// Cohere splits the conversation into the latest message plus history
	if n := len(spec.Messages); n > 0 {
		req.Message = spec.Messages[n-1].Content
		for _, m := range spec.Messages[:n-1] {
			role := "USER"
			if m.Role == "assistant" {
				role = "CHATBOT"
			}
			req.ChatHistory = append(req.ChatHistory, cohereChatMessage{Role: role, Message: m.Content})
		}
	}

	if spec.Temperature > 0 {
		req.Temperature = &spec.Temperature
	}
	if spec.MaxTokens > 0 {
		req.MaxTokens = &spec.MaxTokens
	}

	return req
}

type cohereParser struct{}

func (cohereParser) Parse(body []byte) (*ParsedResponse, error) {
	var resp cohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Text == "" {
		return nil, errors.New("response contains no text")
	}

	in := resp.Meta.BilledUnits.InputTokens
	out := resp.Meta.BilledUnits.OutputTokens

	finish := resp.FinishReason
	if finish == "" {
		finish = "COMPLETE"
	}

	return &ParsedResponse{
		ID:               resp.ResponseID,
		Content:          resp.Text,
		FinishReason:     finish,
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}, nil
}
