package handlers

import (
	"net/http"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/utils"
	"go.uber.org/zap"
)

// ProviderStatus is the diagnostic view of one registered provider
type ProviderStatus struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Priority       int      `json:"priority"`
	Models         []string `json:"models"`
	Capabilities   []string `json:"capabilities"`
	CostPer1K      float64  `json:"cost_per_1k_tokens"`
	Currency       string   `json:"currency"`
	Configured     bool     `json:"configured"`
	Usable         bool     `json:"usable"`
	RemainingToday int      `json:"remaining_today"`
}

// ListProvidersHandler returns every registered provider with its live
// availability and remaining daily quota
func ListProvidersHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descriptors := deps.Registry.List()

		statuses := make([]ProviderStatus, 0, len(descriptors))
		for _, d := range descriptors {
			caps := make([]string, 0, len(d.Capabilities))
			for _, c := range d.Capabilities {
				caps = append(caps, string(c))
			}

			statuses = append(statuses, ProviderStatus{
				ID:             d.ID,
				Name:           d.Name,
				Priority:       d.Priority,
				Models:         d.Models,
				Capabilities:   caps,
				CostPer1K:      d.Pricing.CostPer1KTokens,
				Currency:       d.Pricing.Currency,
				Configured:     deps.Registry.HasCredential(d),
				Usable:         deps.Routing.IsUsable(d.ID),
				RemainingToday: deps.QuotaTracker.Remaining(d.ID),
			})
		}

		if err := utils.WriteOK(w, statuses); err != nil {
			deps.Logger.Error("failed to write providers response", zap.Error(err))
		}
	}
}
