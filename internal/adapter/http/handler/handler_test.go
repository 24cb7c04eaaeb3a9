package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pix-gateway/internal/adapter/http/dto"
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/internal/core/ports/mocks"
	"pix-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- Charge Handler ---

func TestCreateCharge_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chargeSvc := mocks.NewMockChargeService(ctrl)
	h := NewChargeHandler(chargeSvc)

	merchantID := uuid.New()
	txnID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	chargeSvc.EXPECT().CreateCharge(gomock.Any(), ports.ChargeRequest{
		MerchantID: merchantID,
		Amount:     1990,
		PayerName:  "maria silva",
	}).Return(&ports.ChargeResponse{
		TransactionID: txnID,
		ExternalID:    "txid-abc",
		Acquirer:      domain.AcquirerEfi,
		PixCode:       "00020101br.gov.bcb.pix",
		QRPayload:     "iVBORw0KGgo=",
		ExpiresAt:     expiresAt,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/charges", dto.ChargeRequest{
		MerchantID: merchantID.String(),
		Amount:     1990,
		PayerName:  "maria silva",
	})

	h.CreateCharge(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, txnID.String(), data["transaction_id"])
	assert.Equal(t, "txid-abc", data["external_id"])
	assert.Equal(t, "efi", data["acquirer"])
	assert.Equal(t, "00020101br.gov.bcb.pix", data["pix_code"])
}

func TestCreateCharge_BindingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewChargeHandler(mocks.NewMockChargeService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/charges", gin.H{"amount": -5})

	h.CreateCharge(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCreateCharge_ServiceErrorsKeepTheirStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"acquirer unavailable", apperror.ErrAcquirerUnavailable("efi"), http.StatusServiceUnavailable, "ACQUIRER_UNAVAILABLE"},
		{"amount too low", apperror.ErrAmountTooLow("woovi", 50), http.StatusBadRequest, "AMOUNT_TOO_LOW"},
		{"config missing", apperror.ErrConfigMissing("efi", domain.SettingEfiClientID), http.StatusUnprocessableEntity, "CONFIG_MISSING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			chargeSvc := mocks.NewMockChargeService(ctrl)
			chargeSvc.EXPECT().CreateCharge(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			h := NewChargeHandler(chargeSvc)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = jsonRequest(http.MethodPost, "/api/v1/charges", dto.ChargeRequest{
				MerchantID: uuid.NewString(),
				Amount:     1990,
			})

			h.CreateCharge(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestGetCharge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chargeSvc := mocks.NewMockChargeService(ctrl)
	h := NewChargeHandler(chargeSvc)

	paidAt := time.Now()
	txn := &domain.Transaction{
		ID:         uuid.New(),
		ExternalID: "txid-abc",
		Acquirer:   domain.AcquirerEfi,
		Amount:     1990,
		FeePercent: 1.0,
		FeeFixed:   10,
		Status:     domain.TransactionStatusPaid,
		CreatedAt:  time.Now().Add(-time.Hour),
		PaidAt:     &paidAt,
	}
	chargeSvc.EXPECT().GetCharge(gomock.Any(), domain.AcquirerEfi, "txid-abc").Return(txn, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/charges/efi/txid-abc", nil)
	c.Params = gin.Params{{Key: "acquirer", Value: "efi"}, {Key: "external_id", Value: "txid-abc"}}

	h.GetCharge(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, "PAID", data["status"])
	assert.Equal(t, float64(txn.NetAmount()), data["net_amount"])
	assert.NotEmpty(t, data["paid_at"])
}

func TestGetCharge_UnknownAcquirer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewChargeHandler(mocks.NewMockChargeService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/charges/stone/x", nil)
	c.Params = gin.Params{{Key: "acquirer", Value: "stone"}, {Key: "external_id", Value: "x"}}

	h.GetCharge(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Webhook Handler ---

func TestWebhookReceive_AlwaysAcksProcessedBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := mocks.NewMockWebhookIngestor(ctrl)
	h := NewWebhookHandler(ingestor)

	ingestor.EXPECT().Ingest(gomock.Any(), domain.AcquirerEfi, gomock.Any(), gomock.Any(), []byte(`{"pix":[]}`)).
		Return(&ports.IngestResult{Received: 3, Applied: 1, Duplicates: 1, Unmatched: 1}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/efi", bytes.NewReader([]byte(`{"pix":[]}`)))
	c.Params = gin.Params{{Key: "acquirer", Value: "efi"}}

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, true, data["received"])
	assert.Equal(t, float64(1), data["unmatched"])
}

func TestWebhookReceive_BlockedOrigin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := mocks.NewMockWebhookIngestor(ctrl)
	h := NewWebhookHandler(ingestor)

	ingestor.EXPECT().Ingest(gomock.Any(), domain.AcquirerEfi, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrWebhookBlocked("efi"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/efi", bytes.NewReader([]byte(`{}`)))
	c.Params = gin.Params{{Key: "acquirer", Value: "efi"}}

	h.Receive(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "WEBHOOK_BLOCKED")
}

func TestWebhookReceive_MalformedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := mocks.NewMockWebhookIngestor(ctrl)
	h := NewWebhookHandler(ingestor)

	ingestor.EXPECT().Ingest(gomock.Any(), domain.AcquirerWoovi, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.Validation("malformed webhook payload"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/woovi", bytes.NewReader([]byte(`not json`)))
	c.Params = gin.Params{{Key: "acquirer", Value: "woovi"}}

	h.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookReceive_UnknownAcquirer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWebhookHandler(mocks.NewMockWebhookIngestor(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/stone", bytes.NewReader([]byte(`{}`)))
	c.Params = gin.Params{{Key: "acquirer", Value: "stone"}}

	h.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Admin Handler ---

func newAdminHandler(ctrl *gomock.Controller) (*AdminHandler, *mocks.MockReconciliationService, *mocks.MockHealthRepository, *mocks.MockMonitoringRepository, *mocks.MockSettingsWriter) {
	reconSvc := mocks.NewMockReconciliationService(ctrl)
	healthRepo := mocks.NewMockHealthRepository(ctrl)
	monRepo := mocks.NewMockMonitoringRepository(ctrl)
	settings := mocks.NewMockSettingsWriter(ctrl)
	return NewAdminHandler(reconSvc, healthRepo, monRepo, settings), reconSvc, healthRepo, monRepo, settings
}

func TestReconcile_ByIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, reconSvc, _, _, _ := newAdminHandler(ctrl)
	merchantID := uuid.New()

	reconSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req ports.ReconciliationRequest) (*ports.ReconciliationReport, error) {
			assert.Equal(t, merchantID, req.MerchantID)
			assert.Equal(t, []string{"ext-001", "ext-999"}, req.ExternalIDs)
			assert.Nil(t, req.StartDate)
			return &ports.ReconciliationReport{
				Results: []ports.ReconciliationResult{
					{ExternalID: "ext-001", Status: ports.ReconAlreadyExists},
					{ExternalID: "ext-999", Status: ports.ReconNotFound},
				},
				Summary: ports.ReconciliationSummary{Total: 2, AlreadyExists: 1, NotFound: 1},
			}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/admin/reconciliation", dto.ReconciliationRequest{
		MerchantID:  merchantID.String(),
		Acquirer:    "efi",
		ExternalIDs: []string{"ext-001", "ext-999"},
	})

	h.Reconcile(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	summary := resp["data"].(map[string]any)["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(1), summary["not_found"])
}

func TestReconcile_DateParsing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, reconSvc, _, _, _ := newAdminHandler(ctrl)
	merchantID := uuid.New()

	reconSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req ports.ReconciliationRequest) (*ports.ReconciliationReport, error) {
			require.NotNil(t, req.StartDate)
			require.NotNil(t, req.EndDate)
			assert.Equal(t, 2026, req.StartDate.Year())
			return &ports.ReconciliationReport{}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/admin/reconciliation", dto.ReconciliationRequest{
		MerchantID: merchantID.String(),
		Acquirer:   "efi",
		StartDate:  "2026-08-01",
		EndDate:    "2026-08-31",
	})

	h.Reconcile(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReconcile_BadDate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, _, _ := newAdminHandler(ctrl)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/admin/reconciliation", dto.ReconciliationRequest{
		MerchantID: uuid.NewString(),
		StartDate:  "01/08/2026",
		EndDate:    "2026-08-31",
	})

	h.Reconcile(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcquirerHealthSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, healthRepo, _, _ := newAdminHandler(ctrl)

	now := time.Now()
	healthRepo.EXPECT().List(gomock.Any()).Return([]domain.AcquirerHealth{
		{Acquirer: domain.AcquirerEfi, IsHealthy: true, ConsecutiveSuccesses: 12, AvgResponseTimeMs: 180, LastCheckAt: now},
		{Acquirer: domain.AcquirerWoovi, IsHealthy: false, ConsecutiveFailures: 3, LastCheckAt: now, LastErrorMessage: "status 502"},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/acquirers/health", nil)

	h.AcquirerHealth(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	rows := resp["data"].([]any)
	require.Len(t, rows, 2)
	woovi := rows[1].(map[string]any)
	assert.Equal(t, false, woovi["is_healthy"])
	assert.Equal(t, "status 502", woovi["last_error_message"])
}

func TestAcquirerEvents_LimitValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, monRepo, _ := newAdminHandler(ctrl)

	monRepo.EXPECT().ListRecent(gomock.Any(), domain.AcquirerEfi, 10).Return([]domain.MonitoringEvent{
		{Acquirer: domain.AcquirerEfi, EventType: domain.EventFailure, ErrorMessage: "timeout", CreatedAt: time.Now()},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/acquirers/efi/events?limit=10", nil)
	c.Params = gin.Params{{Key: "acquirer", Value: "efi"}}

	h.AcquirerEvents(c)
	assert.Equal(t, http.StatusOK, w.Code)

	// Out-of-range limit rejected before touching the repository.
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/acquirers/efi/events?limit=9999", nil)
	c.Params = gin.Params{{Key: "acquirer", Value: "efi"}}

	h.AcquirerEvents(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertSetting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, _, settings := newAdminHandler(ctrl)
	merchantID := uuid.New()

	settings.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, setting *domain.Setting) error {
			require.NotNil(t, setting.MerchantID)
			assert.Equal(t, merchantID, *setting.MerchantID)
			assert.Equal(t, domain.SettingWooviAppID, setting.Key)
			// The settings service marks secret rows before storage.
			setting.Encrypted = true
			return nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPut, "/api/v1/admin/settings", dto.SettingUpsertRequest{
		MerchantID: merchantID.String(),
		Key:        domain.SettingWooviAppID,
		Value:      "Q2xpZW50",
	})

	h.UpsertSetting(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, true, data["encrypted"])
	assert.NotContains(t, w.Body.String(), "Q2xpZW50", "stored values never travel back")
}

func TestUpsertSetting_InvalidKeyCharset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, _, _ := newAdminHandler(ctrl)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPut, "/api/v1/admin/settings", dto.SettingUpsertRequest{
		Key:   "pix key; drop table",
		Value: "x",
	})

	h.UpsertSetting(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Router wiring ---

func TestRouter_AdminRequiresJWT(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	r := SetupRouter(RouterDeps{
		ChargeSvc:      mocks.NewMockChargeService(ctrl),
		WebhookSvc:     mocks.NewMockWebhookIngestor(ctrl),
		ReconSvc:       mocks.NewMockReconciliationService(ctrl),
		SettingsWriter: mocks.NewMockSettingsWriter(ctrl),
		HealthRepo:     mocks.NewMockHealthRepository(ctrl),
		MonRepo:        mocks.NewMockMonitoringRepository(ctrl),
		TokenSvc:       tokenSvc,
		Logger:         zerolog.Nop(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/acquirers/health", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HealthEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	checker := mocks.NewMockHealthChecker(ctrl)
	checker.EXPECT().Ping(gomock.Any()).Return(assert.AnError)
	checker.EXPECT().Name().Return("postgres")

	r := SetupRouter(RouterDeps{
		ChargeSvc:      mocks.NewMockChargeService(ctrl),
		WebhookSvc:     mocks.NewMockWebhookIngestor(ctrl),
		ReconSvc:       mocks.NewMockReconciliationService(ctrl),
		SettingsWriter: mocks.NewMockSettingsWriter(ctrl),
		HealthRepo:     mocks.NewMockHealthRepository(ctrl),
		MonRepo:        mocks.NewMockMonitoringRepository(ctrl),
		TokenSvc:       mocks.NewMockTokenService(ctrl),
		HealthCheckers: []ports.HealthChecker{checker},
		Logger:         zerolog.Nop(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
