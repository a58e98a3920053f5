package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/prospector/internal/database"
	"github.com/BradenHooton/prospector/internal/models"
	"github.com/jackc/pgx/v5"
)

// QuotaRepository stores monthly usage counters in Postgres
type QuotaRepository struct {
	db *database.DB
}

// NewQuotaRepository creates a new QuotaRepository
func NewQuotaRepository(db *database.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// GetCount returns the usage for a month, 0 when no record exists yet
func (r *QuotaRepository) GetCount(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string) (int, error) {
	query := `
		SELECT count FROM quota_usage
		WHERE user_id = $1 AND resource_kind = $2 AND year_month = $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, string(kind), yearMonth).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// Increment adds delta to the counter, creating the record on first use.
// The upsert is a single statement, so concurrent increments never lose updates.
func (r *QuotaRepository) Increment(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta int) (int, error) {
	query := `
		INSERT INTO quota_usage (user_id, resource_kind, year_month, count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, resource_kind, year_month)
		DO UPDATE SET count = quota_usage.count + EXCLUDED.count, updated_at = CURRENT_TIMESTAMP
		RETURNING count
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID, string(kind), yearMonth, delta).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// IncrementCapped adds at most delta without letting the counter exceed limit.
// It returns the amount actually added and the new count. The row is locked
// for the duration of the read-modify-write.
func (r *QuotaRepository) IncrementCapped(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta, limit int) (int, int, error) {
	if limit == models.Unlimited {
		count, err := r.Increment(ctx, userID, kind, yearMonth, delta)
		return delta, count, err
	}

	var charged, count int
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		ensure := `
			INSERT INTO quota_usage (user_id, resource_kind, year_month, count)
			VALUES ($1, $2, $3, 0)
			ON CONFLICT (user_id, resource_kind, year_month) DO NOTHING
		`
		if _, err := tx.Exec(ctx, ensure, userID, string(kind), yearMonth); err != nil {
			return err
		}

		lock := `
			SELECT count FROM quota_usage
			WHERE user_id = $1 AND resource_kind = $2 AND year_month = $3
			FOR UPDATE
		`
		var current int
		if err := tx.QueryRow(ctx, lock, userID, string(kind), yearMonth).Scan(&current); err != nil {
			return err
		}

		charged = cappedDelta(current, delta, limit)
		count = current
		if charged == 0 {
			return nil
		}

		update := `
			UPDATE quota_usage SET count = count + $4, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = $1 AND resource_kind = $2 AND year_month = $3
			RETURNING count
		`
		return tx.QueryRow(ctx, update, userID, string(kind), yearMonth, charged).Scan(&count)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to charge quota: %w", database.MapPostgresError(err))
	}

	return charged, count, nil
}

// DeleteBefore removes records of months strictly before yearMonth
func (r *QuotaRepository) DeleteBefore(ctx context.Context, yearMonth string) (int64, error) {
	query := `DELETE FROM quota_usage WHERE year_month < $1`

	result, err := r.db.Pool.Exec(ctx, query, yearMonth)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// cappedDelta is how much of delta fits under limit given the current count
func cappedDelta(current, delta, limit int) int {
	if delta <= 0 {
		return 0
	}
	room := limit - current
	if room <= 0 {
		return 0
	}
	if delta > room {
		return room
	}
	return delta
}
