package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digkill/ImageForge/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Log(ctx context.Context, entry models.GenerationLog) error {
	const query = `
INSERT INTO generation_logs (user_id, model, provider, prompt, size, cost, outcome, error_code, duration_ms)
VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?)`
	if _, err := r.db.ExecContext(ctx, query, entry.UserID, entry.Model, entry.Provider, entry.Prompt, entry.Size, entry.Cost, entry.Outcome, entry.ErrorCode, entry.DurationMS); err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}

// CountForDay counts successful generations of a user on the UTC day of day.
func (r *GenerationRepository) CountForDay(ctx context.Context, userID string, day time.Time) (int, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	const query = `
SELECT COUNT(*) FROM generation_logs
WHERE user_id = ? AND outcome = 'success' AND created_at >= ? AND created_at < ?`
	row := r.db.QueryRowContext(ctx, query, userID, start, end)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count daily generations: %w", err)
	}
	return count, nil
}
