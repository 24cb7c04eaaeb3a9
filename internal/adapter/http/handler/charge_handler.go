package handler

import (
	"time"

	"pix-gateway/internal/adapter/http/dto"
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"
	"pix-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChargeHandler handles charge creation and ledger reads.
type ChargeHandler struct {
	chargeSvc ports.ChargeService
}

// NewChargeHandler creates a new ChargeHandler.
func NewChargeHandler(chargeSvc ports.ChargeService) *ChargeHandler {
	return &ChargeHandler{chargeSvc: chargeSvc}
}

// CreateCharge handles POST /api/v1/charges.
func (h *ChargeHandler) CreateCharge(c *gin.Context) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.Validation("merchant_id is not a valid uuid"))
		return
	}

	result, err := h.chargeSvc.CreateCharge(c.Request.Context(), ports.ChargeRequest{
		MerchantID:  merchantID,
		Amount:      req.Amount,
		PayerName:   req.PayerName,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ChargeResponse{
		TransactionID: result.TransactionID.String(),
		ExternalID:    result.ExternalID,
		Acquirer:      string(result.Acquirer),
		PixCode:       result.PixCode,
		QRPayload:     result.QRPayload,
		ExpiresAt:     result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetCharge handles GET /api/v1/charges/:acquirer/:external_id. It reads the
// local ledger only; the acquirer is never called from the polling path.
func (h *ChargeHandler) GetCharge(c *gin.Context) {
	acquirer := domain.Acquirer(c.Param("acquirer"))
	if !acquirer.IsValid() {
		response.Error(c, apperror.Validation("unknown acquirer"))
		return
	}

	txn, err := h.chargeSvc.GetCharge(c.Request.Context(), acquirer, c.Param("external_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// toTransactionResponse converts domain.Transaction to its DTO.
func toTransactionResponse(txn *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		TransactionID: txn.ID.String(),
		ExternalID:    txn.ExternalID,
		Acquirer:      string(txn.Acquirer),
		Status:        string(txn.Status),
		Amount:        txn.Amount,
		NetAmount:     txn.NetAmount(),
		CreatedAt:     txn.CreatedAt.UTC().Format(time.RFC3339),
	}
	if txn.PaidAt != nil {
		s := txn.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}
