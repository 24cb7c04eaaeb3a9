package ports

import (
	"context"
	"net/http"
	"time"

	"pix-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// SettingsResolver resolves a configuration key for a merchant with the
// three-tier precedence: merchant row, then platform row, then process-level
// default. Empty values fall through; each field of a credential bundle is
// resolved independently. Resolve returns "" when no tier has a value;
// ResolveRequired returns a configuration error instead.
type SettingsResolver interface {
	Resolve(ctx context.Context, key string, merchantID uuid.UUID) (string, error)
	ResolveRequired(ctx context.Context, key string, merchantID uuid.UUID, acquirer domain.Acquirer) (string, error)
}

// SettingsWriter persists configuration rows, encrypting secret-valued keys
// before storage.
type SettingsWriter interface {
	Save(ctx context.Context, setting *domain.Setting) error
}

// Router picks the acquirer for a new charge: merchant preference first,
// degraded-health failover only on explicit opt-in.
type Router interface {
	Pick(ctx context.Context, merchantID uuid.UUID) (domain.Acquirer, error)
}

// ChargeService is the façade used by charge-creation call sites.
type ChargeService interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	GetCharge(ctx context.Context, acquirer domain.Acquirer, externalID string) (*domain.Transaction, error)
}

// ChargeRequest holds validated input for charge creation.
type ChargeRequest struct {
	MerchantID  uuid.UUID
	Amount      int64 // centavos
	PayerName   string
	Description string
}

// ChargeResponse is the caller-facing result of charge creation.
type ChargeResponse struct {
	TransactionID uuid.UUID
	ExternalID    string
	Acquirer      domain.Acquirer
	PixCode       string
	QRPayload     string
	ExpiresAt     time.Time
}

// WebhookIngestor receives acquirer callbacks and applies transitions
// idempotently. The returned result reports per-item outcomes; the HTTP layer
// answers 200 regardless of unmatched items so acquirers do not re-send whole
// batches.
type WebhookIngestor interface {
	Ingest(ctx context.Context, acquirer domain.Acquirer, clientIP string, headers http.Header, body []byte) (*IngestResult, error)
}

// IngestResult summarizes one callback delivery.
type IngestResult struct {
	Received   int
	Applied    int
	Duplicates int
	Unmatched  int
	Invalid    int
}

// ReconciliationService imports acquirer transactions missing from the local
// ledger.
type ReconciliationService interface {
	Reconcile(ctx context.Context, req ReconciliationRequest) (*ReconciliationReport, error)
}

// ReconciliationRequest targets either an explicit identifier list or a date
// range. Acquirer, when empty, defaults to the merchant's configured one.
type ReconciliationRequest struct {
	MerchantID  uuid.UUID
	Acquirer    domain.Acquirer
	ExternalIDs []string
	StartDate   *time.Time
	EndDate     *time.Time
}

// Reconciliation result classifications. Every identifier produces exactly
// one.
const (
	ReconImported      = "imported"
	ReconAlreadyExists = "already_exists"
	ReconNotFound      = "not_found"
	ReconError         = "error"
)

// ReconciliationResult is the classified outcome for one external id.
type ReconciliationResult struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// ReconciliationSummary counts results per classification.
type ReconciliationSummary struct {
	Total         int `json:"total"`
	Imported      int `json:"imported"`
	AlreadyExists int `json:"already_exists"`
	NotFound      int `json:"not_found"`
	Errors        int `json:"errors"`
}

// ReconciliationReport is the full response to the caller.
type ReconciliationReport struct {
	Results []ReconciliationResult `json:"results"`
	Summary ReconciliationSummary  `json:"summary"`
}

// Notifier fans out downstream side effects after a transaction state change.
// It must only ever be invoked on an actual change, never on an idempotent
// no-op, so webhook replays cannot double-deliver.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, txn *domain.Transaction) error
}

// EmailSender delivers the product-delivery email. The mail transport is an
// external collaborator; the default implementation only logs.
type EmailSender interface {
	SendPaymentConfirmation(ctx context.Context, txn *domain.Transaction) error
}

// AnalyticsSink receives conversion events for the analytics pipeline.
type AnalyticsSink interface {
	TrackPayment(ctx context.Context, txn *domain.Transaction) error
}

// EncryptionService handles AES-256-GCM encryption of credential material at
// rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification for inbound
// acquirer webhooks and outbound merchant notifications.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService validates operator JWTs for admin endpoints. Tokens are
// minted out of band; no HTTP surface issues them.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed operator claims.
type TokenClaims struct {
	Operator string
}
