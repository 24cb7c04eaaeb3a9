package acquirer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	wooviBaseURL = "https://api.openpix.com.br"

	wooviMinAmount = 50 // centavos

	wooviSignatureHeader = "x-webhook-signature"
)

// wooviAdapter talks to the woovi (OpenPix) API. Authentication is a static
// AppID header; amounts are integer centavos end to end.
type wooviAdapter struct {
	creds  *CredentialProvider
	sig    ports.SignatureService
	client HTTPClient
	log    zerolog.Logger

	baseURL string
}

// NewWoovi creates the woovi adapter.
func NewWoovi(creds *CredentialProvider, sig ports.SignatureService, log zerolog.Logger) ports.Adapter {
	return &wooviAdapter{
		creds:   creds,
		sig:     sig,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
		baseURL: wooviBaseURL,
	}
}

func (a *wooviAdapter) Name() domain.Acquirer { return domain.AcquirerWoovi }

func (a *wooviAdapter) MinAmount() int64 { return wooviMinAmount }

type wooviCharge struct {
	CorrelationID string     `json:"correlationID"`
	Status        string     `json:"status"`
	Value         int64      `json:"value"`
	BRCode        string     `json:"brCode"`
	QRCodeImage   string     `json:"qrCodeImage"`
	ExpiresDate   time.Time  `json:"expiresDate"`
	PaidAt        *time.Time `json:"paidAt"`
}

type wooviChargeEnvelope struct {
	Charge wooviCharge `json:"charge"`
}

type wooviChargeRequest struct {
	CorrelationID string `json:"correlationID"`
	Value         int64  `json:"value"`
	Comment       string `json:"comment,omitempty"`
	ExpiresIn     int64  `json:"expiresIn"`
}

func (a *wooviAdapter) CreateCharge(ctx context.Context, in ports.CreateChargeInput) (*ports.ChargeResult, error) {
	c, err := a.creds.Woovi(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}

	payload := wooviChargeRequest{
		CorrelationID: uuid.New().String(),
		Value:         in.Amount,
		Comment:       in.Description,
		ExpiresIn:     int64(in.ExpiresIn.Seconds()),
	}
	req, err := newJSONRequest(ctx, http.MethodPost, a.baseURL+"/api/v1/charge", payload)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", c.AppID)

	var created wooviChargeEnvelope
	if err := doJSON(a.client, string(domain.AcquirerWoovi), req, &created); err != nil {
		return nil, err
	}

	return &ports.ChargeResult{
		ExternalID: created.Charge.CorrelationID,
		PixCode:    created.Charge.BRCode,
		QRPayload:  created.Charge.QRCodeImage,
		ExpiresAt:  created.Charge.ExpiresDate,
	}, nil
}

func mapWooviStatus(s string) (domain.TransactionStatus, bool) {
	switch s {
	case "ACTIVE":
		return domain.TransactionStatusGenerated, true
	case "COMPLETED":
		return domain.TransactionStatusPaid, true
	case "EXPIRED":
		return domain.TransactionStatusExpired, true
	case "REFUNDED":
		return domain.TransactionStatusRefunded, true
	}
	return "", false
}

func wooviStatusResult(charge *wooviCharge) (*ports.StatusResult, error) {
	status, ok := mapWooviStatus(charge.Status)
	if !ok {
		return nil, apperror.ErrUpstream(string(domain.AcquirerWoovi), fmt.Errorf("unknown charge status %q", charge.Status))
	}
	result := &ports.StatusResult{ExternalID: charge.CorrelationID, Status: status, Amount: charge.Value}
	if status == domain.TransactionStatusPaid {
		result.PaidAt = charge.PaidAt
	}
	return result, nil
}

func (a *wooviAdapter) QueryStatus(ctx context.Context, merchantID uuid.UUID, externalID string) (*ports.StatusResult, error) {
	c, err := a.creds.Woovi(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, http.MethodGet, a.baseURL+"/api/v1/charge/"+externalID, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", c.AppID)

	var fetched wooviChargeEnvelope
	if err := doJSON(a.client, string(domain.AcquirerWoovi), req, &fetched); err != nil {
		return nil, err
	}
	return wooviStatusResult(&fetched.Charge)
}

// AuthenticateWebhook verifies the HMAC-SHA256 signature over the raw body.
// Without a configured shared secret the callback passes unvalidated.
func (a *wooviAdapter) AuthenticateWebhook(ctx context.Context, clientIP string, headers http.Header, body []byte) (bool, error) {
	secret, err := a.creds.settings.Resolve(ctx, domain.SettingWooviWebhookSecret, uuid.Nil)
	if err != nil {
		return false, err
	}
	if secret == "" {
		return false, nil
	}
	signature := headers.Get(wooviSignatureHeader)
	if signature == "" || !a.sig.Verify(secret, string(body), signature) {
		return false, apperror.ErrWebhookBlocked(string(domain.AcquirerWoovi))
	}
	return true, nil
}

type wooviWebhookPayload struct {
	Event  string      `json:"event"`
	Charge wooviCharge `json:"charge"`
}

// ParseWebhook normalizes woovi's single-event callback. Events other than
// completion and expiry (test pings, movement notifications) produce no
// transitions.
func (a *wooviAdapter) ParseWebhook(ctx context.Context, body []byte) ([]ports.WebhookEvent, error) {
	var payload wooviWebhookPayload
	if err := unmarshalWebhook(body, &payload); err != nil {
		return nil, err
	}
	if payload.Charge.CorrelationID == "" {
		return nil, nil
	}

	var status domain.TransactionStatus
	switch payload.Event {
	case "OPENPIX:CHARGE_COMPLETED":
		status = domain.TransactionStatusPaid
	case "OPENPIX:CHARGE_EXPIRED":
		status = domain.TransactionStatusExpired
	default:
		return nil, nil
	}

	event := ports.WebhookEvent{ExternalID: payload.Charge.CorrelationID, EventType: status}
	if status == domain.TransactionStatusPaid {
		event.PaidAt = payload.Charge.PaidAt
	}
	return []ports.WebhookEvent{event}, nil
}

type wooviChargeListResponse struct {
	Charges []wooviCharge `json:"charges"`
}

// ListTransactions implements the date-range capability used by
// reconciliation.
func (a *wooviAdapter) ListTransactions(ctx context.Context, merchantID uuid.UUID, start, end time.Time) ([]ports.StatusResult, error) {
	c, err := a.creds.Woovi(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/charge?start=%s&end=%s",
		a.baseURL, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	req, err := newJSONRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", c.AppID)

	var list wooviChargeListResponse
	if err := doJSON(a.client, string(domain.AcquirerWoovi), req, &list); err != nil {
		return nil, err
	}

	results := make([]ports.StatusResult, 0, len(list.Charges))
	for i := range list.Charges {
		r, err := wooviStatusResult(&list.Charges[i])
		if err != nil {
			a.log.Warn().Str("correlation_id", list.Charges[i].CorrelationID).
				Str("status", list.Charges[i].Status).
				Msg("woovi: skipping charge with unknown status in listing")
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}
