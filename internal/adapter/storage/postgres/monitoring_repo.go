package postgres

import (
	"context"
	"fmt"

	"pix-gateway/internal/core/domain"
)

// MonitoringRepo implements ports.MonitoringRepository over the append-only
// monitoring_events table. Retention is handled by an external cleanup job.
type MonitoringRepo struct {
	pool Pool
}

// NewMonitoringRepo creates a new MonitoringRepo.
func NewMonitoringRepo(pool Pool) *MonitoringRepo {
	return &MonitoringRepo{pool: pool}
}

// Append writes one monitoring event.
func (r *MonitoringRepo) Append(ctx context.Context, e *domain.MonitoringEvent) error {
	query := `INSERT INTO monitoring_events (acquirer, event_type, error_message, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		e.Acquirer, e.EventType, e.ErrorMessage, e.ResponseTimeMs, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert monitoring event: %w", err)
	}
	return nil
}

// ListRecent fetches the latest events for one acquirer, newest first.
func (r *MonitoringRepo) ListRecent(ctx context.Context, acquirer domain.Acquirer, limit int) ([]domain.MonitoringEvent, error) {
	query := `SELECT id, acquirer, event_type, error_message, response_time_ms, created_at
		FROM monitoring_events WHERE acquirer = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, acquirer, limit)
	if err != nil {
		return nil, fmt.Errorf("list monitoring events: %w", err)
	}
	defer rows.Close()

	var events []domain.MonitoringEvent
	for rows.Next() {
		e := domain.MonitoringEvent{}
		err := rows.Scan(&e.ID, &e.Acquirer, &e.EventType, &e.ErrorMessage, &e.ResponseTimeMs, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan monitoring event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitoring event rows: %w", err)
	}
	return events, nil
}
