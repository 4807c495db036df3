package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelrelay/modelrelay/models"
	"go.uber.org/zap"
)

// Store persists usage records to PostgreSQL. Persistence failures are
// reported to the caller but must never fail the request that produced the
// record.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a usage store over an open database handle
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// RecordCompletion inserts one usage row
func (s *Store) RecordCompletion(ctx context.Context, rec models.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO usage_records
		(id, request_id, provider, model, status, error_code,
		 prompt_tokens, completion_tokens, total_tokens, cost, currency,
		 latency_ms, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Provider, rec.Model, rec.Status, rec.ErrorCode,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Cost, rec.Currency,
		rec.LatencyMs, rec.Attempts, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// GetDailySpend returns the total cost recorded for a provider on the given
// calendar day
func (s *Store) GetDailySpend(ctx context.Context, provider string, day time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE provider = $1
		  AND DATE(created_at) = $2
	`

	var total float64
	err := s.db.QueryRowContext(ctx, query, provider, day.Format("2006-01-02")).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query daily spend: %w", err)
	}

	return total, nil
}

// ProviderSpend summarizes one provider's recorded usage for a day
type ProviderSpend struct {
	Provider    string  `json:"provider"`
	Requests    int     `json:"requests"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

// GetSpendSummary returns per-provider spend for the given calendar day,
// most expensive first
func (s *Store) GetSpendSummary(ctx context.Context, day time.Time) ([]ProviderSpend, error) {
	query := `
		SELECT provider, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE DATE(created_at) = $1
		GROUP BY provider
		ORDER BY SUM(cost) DESC
	`

	rows, err := s.db.QueryContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query spend summary: %w", err)
	}
	defer rows.Close()

	summary := make([]ProviderSpend, 0)
	for rows.Next() {
		var ps ProviderSpend
		if err := rows.Scan(&ps.Provider, &ps.Requests, &ps.TotalTokens, &ps.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan spend row: %w", err)
		}
		summary = append(summary, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return summary, nil
}

// CleanupOld removes usage rows older than the retention window
func (s *Store) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		DELETE FROM usage_records
		WHERE created_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup usage records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("cleaned up old usage records",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("cutoff", cutoff))

	return rowsAffected, nil
}

// StartCleanupWorker periodically removes usage rows past retention
func (s *Store) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started usage cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOld(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup usage records", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping usage cleanup worker")
			return
		}
	}
}
