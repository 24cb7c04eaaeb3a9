package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type notifyTestDeps struct {
	svc       ports.Notifier
	settings  *mocks.MockSettingsResolver
	sigSvc    *mocks.MockSignatureService
	email     *mocks.MockEmailSender
	analytics *mocks.MockAnalyticsSink
	ctrl      *gomock.Controller
}

func setupNotificationService(t *testing.T, client HTTPClient) *notifyTestDeps {
	ctrl := gomock.NewController(t)
	d := &notifyTestDeps{
		settings:  mocks.NewMockSettingsResolver(ctrl),
		sigSvc:    mocks.NewMockSignatureService(ctrl),
		email:     mocks.NewMockEmailSender(ctrl),
		analytics: mocks.NewMockAnalyticsSink(ctrl),
		ctrl:      ctrl,
	}
	if client == nil {
		client = http.DefaultClient
	}
	d.svc = NewNotificationService(d.settings, d.sigSvc, d.email, d.analytics, client, zerolog.Nop())
	return d
}

func paidTxn() *domain.Transaction {
	paidAt := time.Now().UTC()
	return &domain.Transaction{
		ID:         uuid.New(),
		ExternalID: "txid-abc",
		Acquirer:   domain.AcquirerEfi,
		MerchantID: uuid.New(),
		Amount:     1990,
		FeePercent: 1.0,
		FeeFixed:   10,
		Status:     domain.TransactionStatusPaid,
		PaidAt:     &paidAt,
	}
}

func TestNotificationService_DeliversSignedPayload(t *testing.T) {
	delivered := make(chan NotificationPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload NotificationPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		delivered <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := setupNotificationService(t, server.Client())
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := paidTxn()

	d.email.EXPECT().SendPaymentConfirmation(ctx, txn).Return(nil)
	d.analytics.EXPECT().TrackPayment(ctx, txn).Return(nil)
	d.settings.EXPECT().Resolve(ctx, domain.SettingNotifyURL, txn.MerchantID).Return(server.URL, nil)
	d.settings.EXPECT().Resolve(ctx, domain.SettingNotifySecret, txn.MerchantID).Return("whsec-1", nil)
	d.sigSvc.EXPECT().Sign("whsec-1", gomock.Any()).Return("sig-1")

	require.NoError(t, d.svc.NotifyStatusChange(ctx, txn))

	select {
	case payload := <-delivered:
		assert.Equal(t, EventChargePaid, payload.EventType)
		assert.Equal(t, "sig-1", payload.Signature)
		assert.Equal(t, txn.ID.String(), payload.Data.TransactionID)
		assert.Equal(t, "txid-abc", payload.Data.ExternalID)
		assert.Equal(t, int64(1990), payload.Data.Amount)
		assert.Equal(t, txn.NetAmount(), payload.Data.NetAmount)
		assert.NotEmpty(t, payload.Data.PaidAt)
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestNotificationService_NoURLConfiguredSkipsDelivery(t *testing.T) {
	d := setupNotificationService(t, nil)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := paidTxn()
	txn.Status = domain.TransactionStatusExpired

	// Non-payment status: no email, no analytics.
	d.settings.EXPECT().Resolve(ctx, domain.SettingNotifyURL, txn.MerchantID).Return("", nil)

	require.NoError(t, d.svc.NotifyStatusChange(ctx, txn))
}

func TestNotificationService_EmailFailureDoesNotBlockDelivery(t *testing.T) {
	delivered := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := setupNotificationService(t, server.Client())
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := paidTxn()

	d.email.EXPECT().SendPaymentConfirmation(ctx, txn).Return(assert.AnError)
	d.analytics.EXPECT().TrackPayment(ctx, txn).Return(assert.AnError)
	d.settings.EXPECT().Resolve(ctx, domain.SettingNotifyURL, txn.MerchantID).Return(server.URL, nil)
	d.settings.EXPECT().Resolve(ctx, domain.SettingNotifySecret, txn.MerchantID).Return("whsec-1", nil)
	d.sigSvc.EXPECT().Sign("whsec-1", gomock.Any()).Return("sig-1")

	require.NoError(t, d.svc.NotifyStatusChange(ctx, txn))

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestNotificationService_EventTypePerStatus(t *testing.T) {
	assert.Equal(t, EventChargePaid, notificationEventType(domain.TransactionStatusPaid))
	assert.Equal(t, EventChargeExpired, notificationEventType(domain.TransactionStatusExpired))
	assert.Equal(t, EventChargeRefunded, notificationEventType(domain.TransactionStatusRefunded))
}

func TestLogCollaborators(t *testing.T) {
	txn := paidTxn()
	assert.NoError(t, NewLogEmailSender(zerolog.Nop()).SendPaymentConfirmation(context.Background(), txn))
	assert.NoError(t, NewLogAnalyticsSink(zerolog.Nop()).TrackPayment(context.Background(), txn))
}
