package handlers

import (
	"net/http"
	"time"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/utils"
	"go.uber.org/zap"
)

// UsageSummaryHandler returns per-provider spend for one calendar day. The
// optional ?date=YYYY-MM-DD query selects the day; default is today.
func UsageSummaryHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.UsageStore == nil {
			if err := utils.WriteNotFound(w, "usage persistence is not configured"); err != nil {
				deps.Logger.Error("failed to write not found response", zap.Error(err))
			}
			return
		}

		day := time.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				if err := utils.WriteBadRequest(w, "date must be YYYY-MM-DD", map[string]interface{}{
					"date": raw,
				}); err != nil {
					deps.Logger.Error("failed to write bad request response", zap.Error(err))
				}
				return
			}
			day = parsed
		}

		summary, err := deps.UsageStore.GetSpendSummary(r.Context(), day)
		if err != nil {
			deps.Logger.Error("failed to query spend summary", zap.Error(err))
			if err := utils.WriteInternalServerError(w, "failed to query usage"); err != nil {
				deps.Logger.Error("failed to write internal error response", zap.Error(err))
			}
			return
		}

		if err := utils.WriteOK(w, map[string]interface{}{
			"date":      day.Format("2006-01-02"),
			"providers": summary,
		}); err != nil {
			deps.Logger.Error("failed to write usage response", zap.Error(err))
		}
	}
}

// QuotaSnapshotHandler exposes the in-memory daily request counters
func QuotaSnapshotHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := utils.WriteOK(w, deps.QuotaTracker.Snapshot()); err != nil {
			deps.Logger.Error("failed to write quota snapshot response", zap.Error(err))
		}
	}
}
