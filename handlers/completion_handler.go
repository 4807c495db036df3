package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/middleware"
	"github.com/modelrelay/modelrelay/services/gateway"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/routing"
	"github.com/modelrelay/modelrelay/utils"
	"go.uber.org/zap"
)

// ChatMessage is one inbound conversation turn
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// CompletionRequestDTO is the request body for POST /api/v1/chat/completions
type CompletionRequestDTO struct {
	Messages     []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	SystemPrompt string        `json:"system_prompt,omitempty"`

	// Provider forces a specific provider instead of ranked selection
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Capability string `json:"capability,omitempty"`
	Goal       string `json:"goal,omitempty"`

	MaxCostPer1K float64 `json:"max_cost_per_1k_tokens,omitempty" validate:"gte=0"`
	Temperature  float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	MaxTokens    int     `json:"max_tokens,omitempty" validate:"gte=0"`
}

// ChatCompletionHandler routes a chat request through the gateway
func ChatCompletionHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto CompletionRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			if err := utils.WriteBadRequest(w, "invalid JSON body", nil); err != nil {
				deps.Logger.Error("failed to write bad request response", zap.Error(err))
			}
			return
		}

		if err := utils.ValidateStruct(dto); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		capability := providers.CapabilityChat
		if dto.Capability != "" {
			c, ok := providers.ParseCapability(dto.Capability)
			if !ok {
				if err := utils.WriteBadRequest(w, "unknown capability", map[string]interface{}{
					"capability": dto.Capability,
				}); err != nil {
					deps.Logger.Error("failed to write bad request response", zap.Error(err))
				}
				return
			}
			capability = c
		}

		var goal routing.Goal
		if dto.Goal != "" {
			g, ok := routing.ParseGoal(dto.Goal)
			if !ok {
				if err := utils.WriteBadRequest(w, "unknown routing goal", map[string]interface{}{
					"goal": dto.Goal,
				}); err != nil {
					deps.Logger.Error("failed to write bad request response", zap.Error(err))
				}
				return
			}
			goal = g
		}

		messages := make([]providers.Message, 0, len(dto.Messages))
		for _, m := range dto.Messages {
			messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
		}

		req := &gateway.CompletionRequest{
			RequestID:    middleware.GetRequestIDFromContext(r.Context()),
			Capability:   capability,
			Messages:     messages,
			SystemPrompt: dto.SystemPrompt,
			Provider:     dto.Provider,
			Model:        dto.Model,
			Goal:         goal,
			MaxCostPer1K: dto.MaxCostPer1K,
			Temperature:  dto.Temperature,
			MaxTokens:    dto.MaxTokens,
		}

		result, err := deps.Gateway.ProcessCompletion(r.Context(), req)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
			deps.Logger.Error("failed to write completion response", zap.Error(err))
		}
	}
}
