package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// notifyRetryIntervals defines the backoff between merchant delivery
// attempts.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Notification event types, derived from the status the transaction reached.
const (
	EventChargePaid     = "CHARGE_PAID"
	EventChargeExpired  = "CHARGE_EXPIRED"
	EventChargeRefunded = "CHARGE_REFUNDED"
)

// NotificationPayload is the JSON structure pushed to the merchant's
// notify_url.
type NotificationPayload struct {
	EventType string           `json:"event_type"`
	Data      NotificationData `json:"data"`
	Signature string           `json:"signature"`
}

// NotificationData holds the transaction details in the notification.
type NotificationData struct {
	TransactionID string `json:"transaction_id"`
	ExternalID    string `json:"external_id"`
	Acquirer      string `json:"acquirer"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	NetAmount     int64  `json:"net_amount"`
	PaidAt        string `json:"paid_at,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// notificationService implements ports.Notifier. It fans a confirmed status
// change out to the merchant's notify_url (HMAC-signed, delivered async with
// retries) and, for payments, to the email and analytics collaborators.
// Callers only invoke it on transitions that actually applied, so a webhook
// replay can never double-deliver.
type notificationService struct {
	settings   ports.SettingsResolver
	sigSvc     ports.SignatureService
	email      ports.EmailSender
	analytics  ports.AnalyticsSink
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewNotificationService creates the notification service.
func NewNotificationService(
	settings ports.SettingsResolver,
	sigSvc ports.SignatureService,
	email ports.EmailSender,
	analytics ports.AnalyticsSink,
	httpClient HTTPClient,
	log zerolog.Logger,
) ports.Notifier {
	return &notificationService{
		settings:   settings,
		sigSvc:     sigSvc,
		email:      email,
		analytics:  analytics,
		httpClient: httpClient,
		log:        log,
	}
}

func (s *notificationService) NotifyStatusChange(ctx context.Context, txn *domain.Transaction) error {
	if txn.Status == domain.TransactionStatusPaid {
		if err := s.email.SendPaymentConfirmation(ctx, txn); err != nil {
			s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("notify: confirmation email failed")
		}
		if err := s.analytics.TrackPayment(ctx, txn); err != nil {
			s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("notify: analytics tracking failed")
		}
	}

	notifyURL, err := s.settings.Resolve(ctx, domain.SettingNotifyURL, txn.MerchantID)
	if err != nil {
		return err
	}
	if notifyURL == "" {
		s.log.Debug().Str("merchant_id", txn.MerchantID.String()).Msg("notify: no notify_url configured, skipping")
		return nil
	}
	secret, err := s.settings.Resolve(ctx, domain.SettingNotifySecret, txn.MerchantID)
	if err != nil {
		return err
	}

	data := NotificationData{
		TransactionID: txn.ID.String(),
		ExternalID:    txn.ExternalID,
		Acquirer:      string(txn.Acquirer),
		Status:        string(txn.Status),
		Amount:        txn.Amount,
		NetAmount:     txn.NetAmount(),
		Timestamp:     time.Now().Unix(),
	}
	if txn.PaidAt != nil {
		data.PaidAt = txn.PaidAt.UTC().Format(time.RFC3339)
	}

	dataBytes, _ := json.Marshal(data)
	payload := NotificationPayload{
		EventType: notificationEventType(txn.Status),
		Data:      data,
		Signature: s.sigSvc.Sign(secret, string(dataBytes)),
	}

	// Fire async with retries
	go s.deliverWithRetries(notifyURL, payload, txn.ID.String())

	return nil
}

func notificationEventType(status domain.TransactionStatus) string {
	switch status {
	case domain.TransactionStatusExpired:
		return EventChargeExpired
	case domain.TransactionStatusRefunded:
		return EventChargeRefunded
	default:
		return EventChargePaid
	}
}

// deliverWithRetries attempts to deliver the notification with backoff.
func (s *notificationService) deliverWithRetries(url string, payload NotificationPayload, txID string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", txID).Msg("notify: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(notifyRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(notifyRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payloadBytes))
		if err != nil {
			s.log.Error().Err(err).Str("tx_id", txID).Int("attempt", attempt+1).Msg("notify: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("tx_id", txID).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("tx_id", txID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notify: delivered successfully")
			return
		}

		s.log.Warn().Str("tx_id", txID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notify: non-2xx response, retrying")
	}

	s.log.Error().Str("tx_id", txID).Msg("notify: all retry attempts exhausted")
}

// LogEmailSender is the default ports.EmailSender: the mail transport is an
// external collaborator, so locally it just logs.
type LogEmailSender struct {
	log zerolog.Logger
}

// NewLogEmailSender creates a log-only email sender.
func NewLogEmailSender(log zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{log: log}
}

func (s *LogEmailSender) SendPaymentConfirmation(_ context.Context, txn *domain.Transaction) error {
	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("external_id", txn.ExternalID).
		Int64("amount", txn.Amount).
		Msg("email: payment confirmation queued")
	return nil
}

// LogAnalyticsSink is the default ports.AnalyticsSink.
type LogAnalyticsSink struct {
	log zerolog.Logger
}

// NewLogAnalyticsSink creates a log-only analytics sink.
func NewLogAnalyticsSink(log zerolog.Logger) *LogAnalyticsSink {
	return &LogAnalyticsSink{log: log}
}

func (s *LogAnalyticsSink) TrackPayment(_ context.Context, txn *domain.Transaction) error {
	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("acquirer", string(txn.Acquirer)).
		Int64("net_amount", txn.NetAmount()).
		Msg("analytics: payment conversion tracked")
	return nil
}
