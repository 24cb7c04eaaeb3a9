package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a PIX charge.
type TransactionStatus string

const (
	TransactionStatusGenerated TransactionStatus = "GENERATED"
	TransactionStatusPaid      TransactionStatus = "PAID"
	TransactionStatusExpired   TransactionStatus = "EXPIRED"
	TransactionStatusRefunded  TransactionStatus = "REFUNDED"
)

// Transaction is the local ledger row for a charge issued through an acquirer.
// ExternalID is the acquirer-assigned reference, unique per acquirer. Fee
// fields are captured at creation time and never updated, so historical net
// amount calculations stay stable when fee schedules change.
type Transaction struct {
	ID         uuid.UUID         `json:"id"`
	ExternalID string            `json:"external_id"`
	Acquirer   Acquirer          `json:"acquirer"`
	MerchantID uuid.UUID         `json:"merchant_id"`
	Amount     int64             `json:"amount"` // centavos
	Status     TransactionStatus `json:"status"`
	FeePercent float64           `json:"fee_percent"`
	FeeFixed   int64             `json:"fee_fixed"` // centavos
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	PaidAt     *time.Time        `json:"paid_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
// REFUNDED is reachable from PAID, so PAID is terminal only for the
// generated->paid path, not absolutely.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TransactionStatusGenerated
}

// CanTransitionTo reports whether moving to next is a legal transition.
// Legal moves: GENERATED->PAID, GENERATED->EXPIRED, PAID->REFUNDED.
func (t *Transaction) CanTransitionTo(next TransactionStatus) bool {
	switch t.Status {
	case TransactionStatusGenerated:
		return next == TransactionStatusPaid || next == TransactionStatusExpired
	case TransactionStatusPaid:
		return next == TransactionStatusRefunded
	default:
		return false
	}
}

// NetAmount returns the amount minus the fees captured at creation time.
func (t *Transaction) NetAmount() int64 {
	fee := int64(float64(t.Amount)*t.FeePercent/100.0) + t.FeeFixed
	if fee > t.Amount {
		return 0
	}
	return t.Amount - fee
}
