package ports

import (
	"context"
	"time"

	"pix-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// TransactionRepository defines persistence for the charge ledger.
//
// Create relies on the store's unique index on (external_id, acquirer): a
// violation is returned as a DuplicateError, which callers treat as
// already-exists rather than failure. ApplyTransition performs the
// compare-and-set status update; applied=false means the row was not in the
// expected prior state, i.e. the transition already happened or is illegal.
// Both properties hold under concurrent webhook redelivery and concurrent
// reconciliation of the same identifier.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByExternalID(ctx context.Context, externalID string, acquirer domain.Acquirer) (*domain.Transaction, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, paidAt *time.Time) (applied bool, err error)
}

// HealthRepository persists the per-acquirer health gauge (one current-state
// row per acquirer, upserted in place, never deleted).
type HealthRepository interface {
	Get(ctx context.Context, acquirer domain.Acquirer) (*domain.AcquirerHealth, error)
	Upsert(ctx context.Context, health *domain.AcquirerHealth) error
	List(ctx context.Context) ([]domain.AcquirerHealth, error)
}

// MonitoringRepository appends to the monitoring event log. Append failures
// must never fail the operation being monitored; callers log and move on.
type MonitoringRepository interface {
	Append(ctx context.Context, event *domain.MonitoringEvent) error
	ListRecent(ctx context.Context, acquirer domain.Acquirer, limit int) ([]domain.MonitoringEvent, error)
}

// SettingsRepository reads the two stored tiers of configuration. The
// process-level default tier lives in config, not in the store.
type SettingsRepository interface {
	GetMerchant(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Setting, error)
	GetPlatform(ctx context.Context, key string) (*domain.Setting, error)
	Upsert(ctx context.Context, setting *domain.Setting) error
}
