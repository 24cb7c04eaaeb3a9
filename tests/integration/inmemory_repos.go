package integration

import (
	"context"
	"sync"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// --- In-Memory Transaction Repo ---

// inMemoryTransactionRepo mirrors the PostgreSQL repo's two guarantees: the
// unique index on (external_id, acquirer) and the compare-and-set status
// transition.
type inMemoryTransactionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{rows: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.ExternalID == t.ExternalID && existing.Acquirer == t.Acquirer {
			return apperror.ErrDuplicate(t.ExternalID)
		}
	}
	clone := *t
	r.rows[t.ID] = &clone
	return nil
}

func (r *inMemoryTransactionRepo) GetByExternalID(ctx context.Context, externalID string, acquirer domain.Acquirer) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.ExternalID == externalID && t.Acquirer == acquirer {
			clone := *t
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) ApplyTransition(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, paidAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if paidAt != nil {
		t.PaidAt = paidAt
	}
	return true, nil
}

func (r *inMemoryTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- In-Memory Health Repo ---

type inMemoryHealthRepo struct {
	mu   sync.Mutex
	rows map[domain.Acquirer]*domain.AcquirerHealth
}

func newInMemoryHealthRepo() *inMemoryHealthRepo {
	return &inMemoryHealthRepo{rows: make(map[domain.Acquirer]*domain.AcquirerHealth)}
}

func (r *inMemoryHealthRepo) Get(ctx context.Context, acquirer domain.Acquirer) (*domain.AcquirerHealth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.rows[acquirer]
	if !ok {
		return nil, nil
	}
	clone := *h
	return &clone, nil
}

func (r *inMemoryHealthRepo) Upsert(ctx context.Context, health *domain.AcquirerHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *health
	r.rows[health.Acquirer] = &clone
	return nil
}

func (r *inMemoryHealthRepo) List(ctx context.Context) ([]domain.AcquirerHealth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AcquirerHealth, 0, len(r.rows))
	for _, h := range r.rows {
		out = append(out, *h)
	}
	return out, nil
}

// --- In-Memory Monitoring Repo ---

type inMemoryMonitoringRepo struct {
	mu     sync.Mutex
	events []domain.MonitoringEvent
}

func newInMemoryMonitoringRepo() *inMemoryMonitoringRepo {
	return &inMemoryMonitoringRepo{}
}

func (r *inMemoryMonitoringRepo) Append(ctx context.Context, event *domain.MonitoringEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *inMemoryMonitoringRepo) ListRecent(ctx context.Context, acquirer domain.Acquirer, limit int) ([]domain.MonitoringEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MonitoringEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].Acquirer == acquirer {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

func (r *inMemoryMonitoringRepo) countByType(eventType domain.MonitoringEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// --- In-Memory Settings Repo ---

type settingKey struct {
	merchant uuid.UUID // uuid.Nil = platform row
	key      string
}

type inMemorySettingsRepo struct {
	mu   sync.Mutex
	rows map[settingKey]*domain.Setting
}

func newInMemorySettingsRepo() *inMemorySettingsRepo {
	return &inMemorySettingsRepo{rows: make(map[settingKey]*domain.Setting)}
}

func (r *inMemorySettingsRepo) GetMerchant(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[settingKey{merchant: merchantID, key: key}]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *inMemorySettingsRepo) GetPlatform(ctx context.Context, key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[settingKey{key: key}]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *inMemorySettingsRepo) Upsert(ctx context.Context, setting *domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := settingKey{key: setting.Key}
	if setting.MerchantID != nil {
		k.merchant = *setting.MerchantID
	}
	clone := *setting
	r.rows[k] = &clone
	return nil
}

var _ ports.TransactionRepository = (*inMemoryTransactionRepo)(nil)
var _ ports.HealthRepository = (*inMemoryHealthRepo)(nil)
var _ ports.MonitoringRepository = (*inMemoryMonitoringRepo)(nil)
var _ ports.SettingsRepository = (*inMemorySettingsRepo)(nil)
