package postgres

import (
	"context"
	"errors"
	"fmt"

	"pix-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SettingsRepo implements ports.SettingsRepository. One table holds both
// stored tiers; merchant_id NULL marks the platform-wide row.
type SettingsRepo struct {
	pool Pool
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(pool Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// GetMerchant fetches a merchant-scoped setting. Returns nil, nil when absent.
func (r *SettingsRepo) GetMerchant(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Setting, error) {
	query := `SELECT merchant_id, key, value, encrypted FROM settings
		WHERE merchant_id = $1 AND key = $2`

	return scanSetting(r.pool.QueryRow(ctx, query, merchantID, key))
}

// GetPlatform fetches the platform-wide setting. Returns nil, nil when absent.
func (r *SettingsRepo) GetPlatform(ctx context.Context, key string) (*domain.Setting, error) {
	query := `SELECT merchant_id, key, value, encrypted FROM settings
		WHERE merchant_id IS NULL AND key = $1`

	return scanSetting(r.pool.QueryRow(ctx, query, key))
}

// Upsert writes a setting row. The partial unique indexes on
// (merchant_id, key) and (key) WHERE merchant_id IS NULL keep one row per
// scope.
func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.Setting) error {
	var err error
	if s.MerchantID != nil {
		query := `INSERT INTO settings (merchant_id, key, value, encrypted) VALUES ($1, $2, $3, $4)
			ON CONFLICT (merchant_id, key) WHERE merchant_id IS NOT NULL
			DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted`
		_, err = r.pool.Exec(ctx, query, s.MerchantID, s.Key, s.Value, s.Encrypted)
	} else {
		query := `INSERT INTO settings (merchant_id, key, value, encrypted) VALUES (NULL, $1, $2, $3)
			ON CONFLICT (key) WHERE merchant_id IS NULL
			DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted`
		_, err = r.pool.Exec(ctx, query, s.Key, s.Value, s.Encrypted)
	}
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", s.Key, err)
	}
	return nil
}

func scanSetting(row pgx.Row) (*domain.Setting, error) {
	s := &domain.Setting{}
	err := row.Scan(&s.MerchantID, &s.Key, &s.Value, &s.Encrypted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan setting: %w", err)
	}
	return s, nil
}
