package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// stubAdapter is a scriptable in-process acquirer. Wire-level behavior of the
// real adapters is covered by their own package tests; here the interesting
// part is how the services orchestrate around the contract.
type stubAdapter struct {
	name      domain.Acquirer
	minAmount int64

	mu        sync.Mutex
	failing   atomic.Bool
	statuses  map[string]ports.StatusResult
	blockHook bool
}

func newStubAdapter(name domain.Acquirer, minAmount int64) *stubAdapter {
	return &stubAdapter{
		name:      name,
		minAmount: minAmount,
		statuses:  make(map[string]ports.StatusResult),
	}
}

func (a *stubAdapter) Name() domain.Acquirer { return a.name }

func (a *stubAdapter) MinAmount() int64 { return a.minAmount }

func (a *stubAdapter) CreateCharge(ctx context.Context, in ports.CreateChargeInput) (*ports.ChargeResult, error) {
	if a.failing.Load() {
		return nil, apperror.ErrUpstream(string(a.name), context.DeadlineExceeded)
	}
	if in.Amount < a.minAmount {
		return nil, apperror.ErrAmountTooLow(string(a.name), a.minAmount)
	}
	externalID := string(a.name) + "-txid-" + uuid.New().String()[:8]

	a.mu.Lock()
	a.statuses[externalID] = ports.StatusResult{
		ExternalID: externalID,
		Status:     domain.TransactionStatusGenerated,
		Amount:     in.Amount,
	}
	a.mu.Unlock()

	return &ports.ChargeResult{
		ExternalID: externalID,
		PixCode:    "00020101br.gov.bcb.pix/" + externalID,
		QRPayload:  "qr-" + externalID,
		ExpiresAt:  time.Now().Add(in.ExpiresIn),
	}, nil
}

func (a *stubAdapter) QueryStatus(ctx context.Context, merchantID uuid.UUID, externalID string) (*ports.StatusResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	result, ok := a.statuses[externalID]
	if !ok {
		return nil, apperror.ErrNotFound("charge")
	}
	return &result, nil
}

func (a *stubAdapter) AuthenticateWebhook(ctx context.Context, clientIP string, headers http.Header, body []byte) (bool, error) {
	if a.blockHook {
		return false, apperror.ErrWebhookBlocked(string(a.name))
	}
	return true, nil
}

// stubWebhookPayload is the callback shape the stub adapter parses.
type stubWebhookPayload struct {
	Events []struct {
		ExternalID string `json:"external_id"`
		Status     string `json:"status"`
	} `json:"events"`
}

func (a *stubAdapter) ParseWebhook(ctx context.Context, body []byte) ([]ports.WebhookEvent, error) {
	var payload stubWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Validation("malformed webhook payload")
	}
	events := make([]ports.WebhookEvent, 0, len(payload.Events))
	now := time.Now()
	for _, e := range payload.Events {
		event := ports.WebhookEvent{
			ExternalID: e.ExternalID,
			EventType:  domain.TransactionStatus(e.Status),
		}
		if event.EventType == domain.TransactionStatusPaid {
			event.PaidAt = &now
		}
		events = append(events, event)
	}
	return events, nil
}

// seedUpstream registers a charge as existing at the acquirer without going
// through CreateCharge, for reconciliation scenarios.
func (a *stubAdapter) seedUpstream(externalID string, status domain.TransactionStatus, amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[externalID] = ports.StatusResult{
		ExternalID: externalID,
		Status:     status,
		Amount:     amount,
	}
}

var _ ports.Adapter = (*stubAdapter)(nil)
