package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction row in one step. A hit on the unique index
// over (external_id, acquirer) comes back as a DuplicateError, so concurrent
// webhook delivery and reconciliation racing for the same identifier resolve
// to exactly one row.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, external_id, acquirer, merchant_id, amount, status,
		fee_percent, fee_fixed, metadata, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.ExternalID, t.Acquirer, t.MerchantID,
		t.Amount, t.Status, t.FeePercent, t.FeeFixed,
		t.Metadata, t.CreatedAt, t.PaidAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.ErrDuplicate(t.ExternalID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByExternalID fetches a transaction by acquirer-assigned reference.
// Returns nil, nil when no row exists.
func (r *TransactionRepo) GetByExternalID(ctx context.Context, externalID string, acquirer domain.Acquirer) (*domain.Transaction, error) {
	query := `SELECT id, external_id, acquirer, merchant_id, amount, status,
		fee_percent, fee_fixed, metadata, created_at, paid_at
		FROM transactions WHERE external_id = $1 AND acquirer = $2`

	return scanTransaction(r.pool.QueryRow(ctx, query, externalID, acquirer))
}

// ApplyTransition performs the compare-and-set status update. The row moves
// from -> to only if it is still in the expected prior state; zero rows
// affected means the transition already happened (idempotent redelivery) or
// is illegal, and the caller gets applied=false either way.
func (r *TransactionRepo) ApplyTransition(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, paidAt *time.Time) (bool, error) {
	query := `UPDATE transactions SET status = $1, paid_at = COALESCE($2, paid_at)
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, to, paidAt, id, from)
	if err != nil {
		return false, fmt.Errorf("apply transition %s->%s: %w", from, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// scanTransaction is a helper to scan a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.ExternalID, &t.Acquirer, &t.MerchantID,
		&t.Amount, &t.Status, &t.FeePercent, &t.FeeFixed,
		&t.Metadata, &t.CreatedAt, &t.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
