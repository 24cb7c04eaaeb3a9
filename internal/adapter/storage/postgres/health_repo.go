package postgres

import (
	"context"
	"errors"
	"fmt"

	"pix-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// HealthRepo implements ports.HealthRepository over the acquirer_health
// gauge table (one row per acquirer, overwritten in place).
type HealthRepo struct {
	pool Pool
}

// NewHealthRepo creates a new HealthRepo.
func NewHealthRepo(pool Pool) *HealthRepo {
	return &HealthRepo{pool: pool}
}

const healthColumns = `acquirer, is_healthy, consecutive_successes, consecutive_failures,
		avg_response_time_ms, last_check_at, last_success_at, last_failure_at, last_error_message`

// Get fetches the current health record for an acquirer.
// Returns nil, nil when the acquirer has never been probed.
func (r *HealthRepo) Get(ctx context.Context, acquirer domain.Acquirer) (*domain.AcquirerHealth, error) {
	query := `SELECT ` + healthColumns + ` FROM acquirer_health WHERE acquirer = $1`

	h, err := scanHealth(r.pool.QueryRow(ctx, query, acquirer))
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Upsert writes the gauge row, creating it lazily on first probe.
func (r *HealthRepo) Upsert(ctx context.Context, h *domain.AcquirerHealth) error {
	query := `INSERT INTO acquirer_health (acquirer, is_healthy, consecutive_successes, consecutive_failures,
		avg_response_time_ms, last_check_at, last_success_at, last_failure_at, last_error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (acquirer) DO UPDATE SET
			is_healthy = EXCLUDED.is_healthy,
			consecutive_successes = EXCLUDED.consecutive_successes,
			consecutive_failures = EXCLUDED.consecutive_failures,
			avg_response_time_ms = EXCLUDED.avg_response_time_ms,
			last_check_at = EXCLUDED.last_check_at,
			last_success_at = EXCLUDED.last_success_at,
			last_failure_at = EXCLUDED.last_failure_at,
			last_error_message = EXCLUDED.last_error_message`

	_, err := r.pool.Exec(ctx, query,
		h.Acquirer, h.IsHealthy, h.ConsecutiveSuccesses, h.ConsecutiveFailures,
		h.AvgResponseTimeMs, h.LastCheckAt, h.LastSuccessAt, h.LastFailureAt, h.LastErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert acquirer health: %w", err)
	}
	return nil
}

// List returns the health snapshot for all probed acquirers.
func (r *HealthRepo) List(ctx context.Context) ([]domain.AcquirerHealth, error) {
	query := `SELECT ` + healthColumns + ` FROM acquirer_health ORDER BY acquirer`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list acquirer health: %w", err)
	}
	defer rows.Close()

	var records []domain.AcquirerHealth
	for rows.Next() {
		h := domain.AcquirerHealth{}
		err := rows.Scan(
			&h.Acquirer, &h.IsHealthy, &h.ConsecutiveSuccesses, &h.ConsecutiveFailures,
			&h.AvgResponseTimeMs, &h.LastCheckAt, &h.LastSuccessAt, &h.LastFailureAt, &h.LastErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan acquirer health row: %w", err)
		}
		records = append(records, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acquirer health rows: %w", err)
	}
	return records, nil
}

func scanHealth(row pgx.Row) (*domain.AcquirerHealth, error) {
	h := &domain.AcquirerHealth{}
	err := row.Scan(
		&h.Acquirer, &h.IsHealthy, &h.ConsecutiveSuccesses, &h.ConsecutiveFailures,
		&h.AvgResponseTimeMs, &h.LastCheckAt, &h.LastSuccessAt, &h.LastFailureAt, &h.LastErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan acquirer health: %w", err)
	}
	return h, nil
}
