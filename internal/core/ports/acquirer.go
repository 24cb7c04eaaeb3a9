package ports

import (
	"context"
	"net/http"
	"time"

	"pix-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// CreateChargeInput is the acquirer-independent charge request.
type CreateChargeInput struct {
	MerchantID  uuid.UUID
	Amount      int64 // centavos
	PayerName   string
	Description string
	ExpiresIn   time.Duration
}

// ChargeResult is what an adapter returns for a freshly created charge.
type ChargeResult struct {
	ExternalID string
	PixCode    string // copy-and-paste BR Code
	QRPayload  string // payload for QR rendering
	ExpiresAt  time.Time
}

// StatusResult is the acquirer's view of a charge, mapped to the internal
// status vocabulary. Amount is in centavos; reconciliation relies on it when
// importing rows the ledger never saw.
type StatusResult struct {
	ExternalID string
	Status     domain.TransactionStatus
	Amount     int64
	PaidAt     *time.Time
}

// WebhookEvent is one normalized tuple from an acquirer callback. Some
// acquirers batch several per payload.
type WebhookEvent struct {
	ExternalID string
	EventType  domain.TransactionStatus
	PaidAt     *time.Time
}

// Adapter is the uniform per-acquirer contract. Implementations translate
// these calls into the acquirer's wire protocol and wrap every error with the
// acquirer name via apperror so logs stay unambiguous.
//
// QueryStatus must be idempotent and side-effect-free: it is hit by health
// probes, UI polling and reconciliation. Webhook-time calls pass uuid.Nil as
// merchant, resolving credentials from the platform and default tiers only.
type Adapter interface {
	Name() domain.Acquirer

	// MinAmount is the smallest charge the acquirer accepts, in centavos.
	// Amounts below it fail with an AmountTooLow error, which the health
	// monitor relies on to pick a synthetic probe amount that cannot
	// self-inflict failures.
	MinAmount() int64

	CreateCharge(ctx context.Context, in CreateChargeInput) (*ChargeResult, error)
	QueryStatus(ctx context.Context, merchantID uuid.UUID, externalID string) (*StatusResult, error)

	// AuthenticateWebhook validates callback origin. A non-nil error means
	// the callback must be rejected. authenticated=false with nil error
	// means no strict validation is configured for this acquirer; callers
	// log that explicitly so permissive traffic is never indistinguishable
	// from validated traffic.
	AuthenticateWebhook(ctx context.Context, clientIP string, headers http.Header, body []byte) (authenticated bool, err error)

	// ParseWebhook normalizes a raw callback payload into zero or more
	// events. Parsing is independent of matching: unmatched external ids
	// are the caller's concern.
	ParseWebhook(ctx context.Context, body []byte) ([]WebhookEvent, error)
}

// AdapterRegistry resolves adapters by acquirer name. Get fails on unknown
// names; Lister fails with a capability-gap error when the adapter does not
// support date-range listing.
type AdapterRegistry interface {
	Get(acquirer domain.Acquirer) (Adapter, error)
	All() []Adapter
	Lister(acquirer domain.Acquirer) (TransactionLister, error)
}

// TransactionLister is the optional date-range listing capability used by
// reconciliation. Adapters without it cause an explicit capability-gap error
// rather than silently returning zero results.
type TransactionLister interface {
	ListTransactions(ctx context.Context, merchantID uuid.UUID, start, end time.Time) ([]StatusResult, error)
}

// BearerToken is a cached OAuth-style token with its expiry.
type BearerToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is usable beyond the given safety margin.
func (t *BearerToken) Valid(margin time.Duration) bool {
	return t.AccessToken != "" && time.Until(t.ExpiresAt) > margin
}

// TokenCache stores bearer tokens durably, keyed by acquirer (tokens are
// platform-wide). Durability matters: token issuance may itself be
// rate-limited, and horizontally-scaled instances must share one token.
type TokenCache interface {
	Get(ctx context.Context, acquirer domain.Acquirer) (*BearerToken, error)
	Set(ctx context.Context, acquirer domain.Acquirer, token *BearerToken) error

	// AcquireRefreshLock serializes proactive refreshes across instances.
	// Returns false when another caller holds the lock.
	AcquireRefreshLock(ctx context.Context, acquirer domain.Acquirer, ttl time.Duration) (bool, error)
}
