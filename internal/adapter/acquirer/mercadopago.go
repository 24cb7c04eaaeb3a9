package acquirer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	mercadoPagoBaseURL = "https://api.mercadopago.com"

	mercadoPagoMinAmount = 100 // centavos
)

// mercadoPagoAdapter talks to the Mercado Pago payments API with a static
// bearer token. The API has no shared-secret webhook validation; callbacks
// carry only a payment id, which the adapter resolves with a status read.
type mercadoPagoAdapter struct {
	creds  *CredentialProvider
	client HTTPClient
	log    zerolog.Logger

	baseURL string
}

// NewMercadoPago creates the mercadopago adapter.
func NewMercadoPago(creds *CredentialProvider, log zerolog.Logger) ports.Adapter {
	return &mercadoPagoAdapter{
		creds:   creds,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
		baseURL: mercadoPagoBaseURL,
	}
}

func (a *mercadoPagoAdapter) Name() domain.Acquirer { return domain.AcquirerMercadoPago }

func (a *mercadoPagoAdapter) MinAmount() int64 { return mercadoPagoMinAmount }

type mercadoPagoPaymentRequest struct {
	TransactionAmount float64                `json:"transaction_amount"`
	Description       string                 `json:"description,omitempty"`
	PaymentMethodID   string                 `json:"payment_method_id"`
	DateOfExpiration  string                 `json:"date_of_expiration"`
	Payer             mercadoPagoPayer       `json:"payer"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type mercadoPagoPayer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type mercadoPagoPayment struct {
	ID                int64      `json:"id"`
	Status            string     `json:"status"`
	TransactionAmount float64    `json:"transaction_amount"`
	DateApproved      *time.Time `json:"date_approved"`
	DateOfExpiration  string     `json:"date_of_expiration"`
	PointOfInt        struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// mercadoPagoExpirationFormat is the non-RFC3339 timestamp layout the
// payments API requires, milliseconds and numeric offset included.
const mercadoPagoExpirationFormat = "2006-01-02T15:04:05.000-07:00"

func (a *mercadoPagoAdapter) CreateCharge(ctx context.Context, in ports.CreateChargeInput) (*ports.ChargeResult, error) {
	c, err := a.creds.MercadoPago(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(in.ExpiresIn)
	payload := mercadoPagoPaymentRequest{
		TransactionAmount: float64(in.Amount) / 100,
		Description:       in.Description,
		PaymentMethodID:   "pix",
		DateOfExpiration:  expiresAt.Format(mercadoPagoExpirationFormat),
		Payer:             mercadoPagoPayer{FirstName: in.PayerName},
	}

	req, err := newJSONRequest(ctx, http.MethodPost, a.baseURL+"/v1/payments", payload)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	// The payments endpoint rejects retried POSTs without an idempotency key.
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	var created mercadoPagoPayment
	if err := doJSON(a.client, string(domain.AcquirerMercadoPago), req, &created); err != nil {
		return nil, err
	}

	return &ports.ChargeResult{
		ExternalID: strconv.FormatInt(created.ID, 10),
		PixCode:    created.PointOfInt.TransactionData.QRCode,
		QRPayload:  created.PointOfInt.TransactionData.QRCodeBase64,
		ExpiresAt:  expiresAt,
	}, nil
}

func mapMercadoPagoStatus(s string) (domain.TransactionStatus, bool) {
	switch s {
	case "pending", "in_process":
		return domain.TransactionStatusGenerated, true
	case "approved":
		return domain.TransactionStatusPaid, true
	case "cancelled", "expired", "rejected":
		return domain.TransactionStatusExpired, true
	case "refunded", "charged_back":
		return domain.TransactionStatusRefunded, true
	}
	return "", false
}

func (a *mercadoPagoAdapter) QueryStatus(ctx context.Context, merchantID uuid.UUID, externalID string) (*ports.StatusResult, error) {
	c, err := a.creds.MercadoPago(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, http.MethodGet, a.baseURL+"/v1/payments/"+externalID, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	var payment mercadoPagoPayment
	if err := doJSON(a.client, string(domain.AcquirerMercadoPago), req, &payment); err != nil {
		return nil, err
	}

	status, ok := mapMercadoPagoStatus(payment.Status)
	if !ok {
		return nil, apperror.ErrUpstream(string(domain.AcquirerMercadoPago), fmt.Errorf("unknown payment status %q", payment.Status))
	}
	result := &ports.StatusResult{
		ExternalID: strconv.FormatInt(payment.ID, 10),
		Status:     status,
		Amount:     int64(payment.TransactionAmount*100 + 0.5),
	}
	if status == domain.TransactionStatusPaid {
		result.PaidAt = payment.DateApproved
	}
	return result, nil
}

// AuthenticateWebhook always reports unvalidated traffic. Mercado Pago offers
// no shared-secret scheme for these callbacks; the ingestor logs the gap on
// every delivery so permissive traffic stays visible.
func (a *mercadoPagoAdapter) AuthenticateWebhook(ctx context.Context, clientIP string, headers http.Header, body []byte) (bool, error) {
	return false, nil
}

type mercadoPagoWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseWebhook resolves the event type by querying the payment, since the
// callback carries only its id. The read is idempotent and side-effect-free,
// so replayed deliveries stay harmless. Credentials resolve from the platform
// tier; the merchant is unknown at this point.
func (a *mercadoPagoAdapter) ParseWebhook(ctx context.Context, body []byte) ([]ports.WebhookEvent, error) {
	var payload mercadoPagoWebhookPayload
	if err := unmarshalWebhook(body, &payload); err != nil {
		return nil, err
	}
	if payload.Type != "payment" || payload.Data.ID == "" {
		return nil, nil
	}

	status, err := a.QueryStatus(ctx, uuid.Nil, payload.Data.ID)
	if err != nil {
		return nil, err
	}
	if status.Status == domain.TransactionStatusGenerated {
		// Nothing to transition yet.
		return nil, nil
	}
	return []ports.WebhookEvent{{
		ExternalID: status.ExternalID,
		EventType:  status.Status,
		PaidAt:     status.PaidAt,
	}}, nil
}
