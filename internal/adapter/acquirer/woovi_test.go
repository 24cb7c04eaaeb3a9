package acquirer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWoovi(t *testing.T, handler http.Handler, settings staticSettings) *wooviAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &wooviAdapter{
		creds:   NewCredentialProvider(settings, testLog),
		sig:     hmacSignature{},
		client:  server.Client(),
		log:     testLog,
		baseURL: server.URL,
	}
}

func TestWoovi_CreateCharge(t *testing.T) {
	expires := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/charge", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-id", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1990), body["value"], "amount travels as integer centavos")
		assert.NotEmpty(t, body["correlationID"])

		json.NewEncoder(w).Encode(map[string]any{"charge": map[string]any{
			"correlationID": body["correlationID"],
			"status":        "ACTIVE",
			"brCode":        "br-code",
			"qrCodeImage":   "qr-image",
			"expiresDate":   expires,
		}})
	})

	adapter := newTestWoovi(t, mux, staticSettings{domain.SettingWooviAppID: "app-id"})

	result, err := adapter.CreateCharge(context.Background(), ports.CreateChargeInput{
		MerchantID: uuid.New(),
		Amount:     1990,
		ExpiresIn:  time.Hour,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ExternalID)
	assert.Equal(t, "br-code", result.PixCode)
	assert.True(t, result.ExpiresAt.Equal(expires))
}

func TestWoovi_QueryStatusMapping(t *testing.T) {
	tests := []struct {
		wooviStatus string
		want        domain.TransactionStatus
	}{
		{"ACTIVE", domain.TransactionStatusGenerated},
		{"COMPLETED", domain.TransactionStatusPaid},
		{"EXPIRED", domain.TransactionStatusExpired},
		{"REFUNDED", domain.TransactionStatusRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.wooviStatus, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/charge/corr-1", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"charge": map[string]any{
					"correlationID": "corr-1",
					"status":        tt.wooviStatus,
				}})
			})

			adapter := newTestWoovi(t, mux, staticSettings{domain.SettingWooviAppID: "app-id"})
			result, err := adapter.QueryStatus(context.Background(), uuid.New(), "corr-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
		})
	}
}

func TestWoovi_AuthenticateWebhook(t *testing.T) {
	body := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED"}`)

	t.Run("no secret configured", func(t *testing.T) {
		adapter := newTestWoovi(t, http.NewServeMux(), staticSettings{domain.SettingWooviAppID: "app-id"})
		ok, err := adapter.AuthenticateWebhook(context.Background(), "1.2.3.4", http.Header{}, body)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	settings := staticSettings{
		domain.SettingWooviAppID:         "app-id",
		domain.SettingWooviWebhookSecret: "shared-secret",
	}

	t.Run("valid signature", func(t *testing.T) {
		adapter := newTestWoovi(t, http.NewServeMux(), settings)
		headers := http.Header{}
		headers.Set(wooviSignatureHeader, hmacSignature{}.Sign("shared-secret", string(body)))

		ok, err := adapter.AuthenticateWebhook(context.Background(), "1.2.3.4", headers, body)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong signature", func(t *testing.T) {
		adapter := newTestWoovi(t, http.NewServeMux(), settings)
		headers := http.Header{}
		headers.Set(wooviSignatureHeader, "bogus")

		_, err := adapter.AuthenticateWebhook(context.Background(), "1.2.3.4", headers, body)
		require.Error(t, err)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.CodeWebhookBlocked, appErr.Code)
	})

	t.Run("missing signature header", func(t *testing.T) {
		adapter := newTestWoovi(t, http.NewServeMux(), settings)
		_, err := adapter.AuthenticateWebhook(context.Background(), "1.2.3.4", http.Header{}, body)
		require.Error(t, err)
	})
}

func TestWoovi_ParseWebhook(t *testing.T) {
	adapter := newTestWoovi(t, http.NewServeMux(), staticSettings{domain.SettingWooviAppID: "app-id"})

	t.Run("charge completed", func(t *testing.T) {
		events, err := adapter.ParseWebhook(context.Background(), []byte(
			`{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"corr-1","status":"COMPLETED","paidAt":"2026-03-14T12:00:00Z"}}`))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "corr-1", events[0].ExternalID)
		assert.Equal(t, domain.TransactionStatusPaid, events[0].EventType)
		require.NotNil(t, events[0].PaidAt)
	})

	t.Run("charge expired", func(t *testing.T) {
		events, err := adapter.ParseWebhook(context.Background(), []byte(
			`{"event":"OPENPIX:CHARGE_EXPIRED","charge":{"correlationID":"corr-2","status":"EXPIRED"}}`))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.TransactionStatusExpired, events[0].EventType)
		assert.Nil(t, events[0].PaidAt)
	})

	t.Run("unrelated event produces nothing", func(t *testing.T) {
		events, err := adapter.ParseWebhook(context.Background(), []byte(
			`{"event":"OPENPIX:MOVEMENT_CONFIRMED","charge":{"correlationID":"corr-3"}}`))
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("test ping without charge", func(t *testing.T) {
		events, err := adapter.ParseWebhook(context.Background(), []byte(`{"event":"teste_webhook"}`))
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestWoovi_MinAmount(t *testing.T) {
	adapter := newTestWoovi(t, http.NewServeMux(), staticSettings{})
	assert.Equal(t, int64(50), adapter.MinAmount())
}
