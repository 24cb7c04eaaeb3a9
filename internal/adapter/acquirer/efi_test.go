package acquirer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func efiTestSettings() staticSettings {
	return staticSettings{
		domain.SettingEfiClientID:       "client-id",
		domain.SettingEfiClientSecret:   "client-secret",
		domain.SettingEfiCertificate:    canonicalPEM,
		domain.SettingEfiCertificateKey: canonicalPEM,
		domain.SettingEfiPixKey:         "chave@pix.example",
	}
}

func newTestEfi(t *testing.T, handler http.Handler) (*efiAdapter, *memoryTokenCache) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := newMemoryTokenCache()
	return &efiAdapter{
		creds:   NewCredentialProvider(efiTestSettings(), testLog),
		tokens:  tokens,
		log:     testLog,
		baseURL: server.URL,
		sandbox: server.URL,
		newClient: func(*EfiCredentials) (HTTPClient, error) {
			return server.Client(), nil
		},
	}, tokens
}

func TestEfi_CreateCharge(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	var cobCalls atomic.Int64
	wantAmounts := []string{"19.90", "5.00"}
	mux.HandleFunc("POST /v2/cob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		call := cobCalls.Add(1)
		assert.Equal(t, wantAmounts[call-1], body["valor"].(map[string]any)["original"])
		assert.Equal(t, "chave@pix.example", body["chave"])
		json.NewEncoder(w).Encode(map[string]any{
			"txid":   "txid-123",
			"status": "ATIVA",
			"loc":    map[string]any{"id": 77},
		})
	})
	mux.HandleFunc("GET /v2/loc/77/qrcode", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"qrcode": "br-code", "imagemQrcode": "img-data"})
	})

	adapter, _ := newTestEfi(t, mux)

	result, err := adapter.CreateCharge(context.Background(), ports.CreateChargeInput{
		MerchantID: uuid.New(),
		Amount:     1990,
		ExpiresIn:  time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "txid-123", result.ExternalID)
	assert.Equal(t, "br-code", result.PixCode)
	assert.Equal(t, "img-data", result.QRPayload)

	// Second charge reuses the cached token.
	_, err = adapter.CreateCharge(context.Background(), ports.CreateChargeInput{
		MerchantID: uuid.New(),
		Amount:     500,
		ExpiresIn:  time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestEfi_TokenRefreshLockLoserReusesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/cob/tx-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stale-but-valid", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"txid": "tx-1", "status": "ATIVA"})
	})

	adapter, tokens := newTestEfi(t, mux)
	// Token inside the refresh margin but not yet expired, with the refresh
	// lock already held elsewhere.
	tokens.tokens[domain.AcquirerEfi] = &ports.BearerToken{
		AccessToken: "stale-but-valid",
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	tokens.locked[domain.AcquirerEfi] = true

	result, err := adapter.QueryStatus(context.Background(), uuid.New(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusGenerated, result.Status)
}

func TestEfi_QueryStatusMapping(t *testing.T) {
	paidAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		efiStatus  string
		want       domain.TransactionStatus
		withPix    bool
		wantPaidAt bool
	}{
		{"active charge", "ATIVA", domain.TransactionStatusGenerated, false, false},
		{"settled charge", "CONCLUIDA", domain.TransactionStatusPaid, true, true},
		{"removed by receiver", "REMOVIDA_PELO_USUARIO_RECEBEDOR", domain.TransactionStatusExpired, false, false},
		{"removed by psp", "REMOVIDA_PELO_PSP", domain.TransactionStatusExpired, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			})
			mux.HandleFunc("GET /v2/cob/tx-1", func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]any{"txid": "tx-1", "status": tt.efiStatus}
				if tt.withPix {
					resp["pix"] = []map[string]any{{"endToEndId": "e2e", "horario": paidAt}}
				}
				json.NewEncoder(w).Encode(resp)
			})

			adapter, _ := newTestEfi(t, mux)
			result, err := adapter.QueryStatus(context.Background(), uuid.New(), "tx-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			if tt.wantPaidAt {
				require.NotNil(t, result.PaidAt)
				assert.True(t, result.PaidAt.Equal(paidAt))
			} else {
				assert.Nil(t, result.PaidAt)
			}
		})
	}
}

func TestEfi_QueryStatusUnknownStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("GET /v2/cob/tx-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"txid": "tx-1", "status": "SOMETHING_NEW"})
	})

	adapter, _ := newTestEfi(t, mux)
	_, err := adapter.QueryStatus(context.Background(), uuid.New(), "tx-1")
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestEfi_AuthenticateWebhook(t *testing.T) {
	adapter, _ := newTestEfi(t, http.NewServeMux())

	t.Run("no allow-list configured", func(t *testing.T) {
		ok, err := adapter.AuthenticateWebhook(context.Background(), "34.193.116.226", nil, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	adapter.creds.settings.(staticSettings)[domain.SettingEfiWebhookIPs] = "34.193.116.226, 18.231.8.32"

	t.Run("listed ip", func(t *testing.T) {
		ok, err := adapter.AuthenticateWebhook(context.Background(), "18.231.8.32", nil, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unlisted ip", func(t *testing.T) {
		_, err := adapter.AuthenticateWebhook(context.Background(), "10.0.0.1", nil, nil)
		require.Error(t, err)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.CodeWebhookBlocked, appErr.Code)
	})
}

func TestEfi_ParseWebhookBatch(t *testing.T) {
	adapter, _ := newTestEfi(t, http.NewServeMux())

	body := []byte(`{"pix":[
		{"txid":"tx-1","horario":"2026-03-14T12:00:00Z"},
		{"txid":"tx-2","horario":"2026-03-14T12:00:05Z"},
		{"txid":"","horario":"2026-03-14T12:00:06Z"}
	]}`)

	events, err := adapter.ParseWebhook(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, events, 2, "entries without a txid are dropped")
	assert.Equal(t, "tx-1", events[0].ExternalID)
	assert.Equal(t, domain.TransactionStatusPaid, events[0].EventType)
	require.NotNil(t, events[0].PaidAt)
	assert.Equal(t, "tx-2", events[1].ExternalID)
}

func TestEfi_ParseWebhookMalformed(t *testing.T) {
	adapter, _ := newTestEfi(t, http.NewServeMux())

	_, err := adapter.ParseWebhook(context.Background(), []byte("not json"))
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEfi_ListTransactions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("GET /v2/cob", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("inicio"))
		assert.NotEmpty(t, r.URL.Query().Get("fim"))
		json.NewEncoder(w).Encode(map[string]any{"cobs": []map[string]any{
			{"txid": "tx-1", "status": "CONCLUIDA", "pix": []map[string]any{{"horario": "2026-03-14T12:00:00Z"}}},
			{"txid": "tx-2", "status": "ATIVA"},
			{"txid": "tx-3", "status": "WEIRD"},
		}})
	})

	adapter, _ := newTestEfi(t, mux)
	results, err := adapter.ListTransactions(context.Background(), uuid.New(),
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2, "unknown statuses are skipped, not fatal")
	assert.Equal(t, domain.TransactionStatusPaid, results[0].Status)
	assert.Equal(t, domain.TransactionStatusGenerated, results[1].Status)
}

func TestEfi_MinAmount(t *testing.T) {
	adapter, _ := newTestEfi(t, http.NewServeMux())
	assert.Equal(t, int64(1), adapter.MinAmount())
}
