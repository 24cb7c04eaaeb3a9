package handler

import (
	"strconv"
	"time"

	"pix-gateway/internal/adapter/http/dto"
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"
	"pix-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the operator endpoints: reconciliation, health
// snapshots, monitoring events and settings upserts.
type AdminHandler struct {
	reconSvc   ports.ReconciliationService
	healthRepo ports.HealthRepository
	monRepo    ports.MonitoringRepository
	settings   ports.SettingsWriter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	reconSvc ports.ReconciliationService,
	healthRepo ports.HealthRepository,
	monRepo ports.MonitoringRepository,
	settings ports.SettingsWriter,
) *AdminHandler {
	return &AdminHandler{
		reconSvc:   reconSvc,
		healthRepo: healthRepo,
		monRepo:    monRepo,
		settings:   settings,
	}
}

// Reconcile handles POST /api/v1/admin/reconciliation.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req dto.ReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.Validation("merchant_id is not a valid uuid"))
		return
	}

	svcReq := ports.ReconciliationRequest{
		MerchantID:  merchantID,
		Acquirer:    domain.Acquirer(req.Acquirer),
		ExternalIDs: req.ExternalIDs,
	}
	if req.StartDate != "" {
		start, err := dto.ParseDate(req.StartDate)
		if err != nil {
			response.Error(c, apperror.Validation("start_date is not a date"))
			return
		}
		svcReq.StartDate = &start
	}
	if req.EndDate != "" {
		end, err := dto.ParseDate(req.EndDate)
		if err != nil {
			response.Error(c, apperror.Validation("end_date is not a date"))
			return
		}
		svcReq.EndDate = &end
	}

	report, err := h.reconSvc.Reconcile(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// AcquirerHealth handles GET /api/v1/admin/acquirers/health.
func (h *AdminHandler) AcquirerHealth(c *gin.Context) {
	rows, err := h.healthRepo.List(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	out := make([]dto.AcquirerHealthResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toHealthResponse(&row))
	}
	response.OK(c, out)
}

// AcquirerEvents handles GET /api/v1/admin/acquirers/:acquirer/events.
func (h *AdminHandler) AcquirerEvents(c *gin.Context) {
	acquirer := domain.Acquirer(c.Param("acquirer"))
	if !acquirer.IsValid() {
		response.Error(c, apperror.Validation("unknown acquirer"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			response.Error(c, apperror.Validation("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	events, err := h.monRepo.ListRecent(c.Request.Context(), acquirer, limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	out := make([]dto.MonitoringEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.MonitoringEventResponse{
			Acquirer:       string(e.Acquirer),
			EventType:      string(e.EventType),
			ErrorMessage:   e.ErrorMessage,
			ResponseTimeMs: e.ResponseTimeMs,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	response.OK(c, out)
}

// UpsertSetting handles PUT /api/v1/admin/settings. Secret-valued keys are
// encrypted by the settings service before they reach storage; the stored
// value is never echoed back.
func (h *AdminHandler) UpsertSetting(c *gin.Context) {
	var req dto.SettingUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	setting := &domain.Setting{Key: req.Key, Value: req.Value}
	if req.MerchantID != "" {
		merchantID, err := uuid.Parse(req.MerchantID)
		if err != nil {
			response.Error(c, apperror.Validation("merchant_id is not a valid uuid"))
			return
		}
		setting.MerchantID = &merchantID
	}

	if err := h.settings.Save(c.Request.Context(), setting); err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.SettingUpsertResponse{Key: setting.Key, Encrypted: setting.Encrypted}
	if setting.MerchantID != nil {
		resp.MerchantID = setting.MerchantID.String()
	}
	response.OK(c, resp)
}

func toHealthResponse(h *domain.AcquirerHealth) dto.AcquirerHealthResponse {
	resp := dto.AcquirerHealthResponse{
		Acquirer:             string(h.Acquirer),
		IsHealthy:            h.IsHealthy,
		ConsecutiveSuccesses: h.ConsecutiveSuccesses,
		ConsecutiveFailures:  h.ConsecutiveFailures,
		AvgResponseTimeMs:    h.AvgResponseTimeMs,
		LastCheckAt:          h.LastCheckAt.UTC().Format(time.RFC3339),
		LastErrorMessage:     h.LastErrorMessage,
	}
	if h.LastSuccessAt != nil {
		s := h.LastSuccessAt.UTC().Format(time.RFC3339)
		resp.LastSuccessAt = &s
	}
	if h.LastFailureAt != nil {
		s := h.LastFailureAt.UTC().Format(time.RFC3339)
		resp.LastFailureAt = &s
	}
	return resp
}
