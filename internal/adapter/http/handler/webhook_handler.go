package handler

import (
	"io"

	"pix-gateway/internal/adapter/http/dto"
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"
	"pix-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives acquirer callbacks.
type WebhookHandler struct {
	ingestor ports.WebhookIngestor
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ingestor ports.WebhookIngestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// Receive handles POST /webhooks/:acquirer. The answer is 200 once the
// payload parses, even when individual items fail to match: a 4xx would make
// the acquirer re-send the whole batch for one unmatched item. 403 is
// reserved for origin validation failures, 400 for unparseable payloads.
func (h *WebhookHandler) Receive(c *gin.Context) {
	acquirer := domain.Acquirer(c.Param("acquirer"))
	if !acquirer.IsValid() {
		response.Error(c, apperror.Validation("unknown acquirer"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), acquirer, c.ClientIP(), c.Request.Header, body)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WebhookAck{
		Received:   true,
		Applied:    result.Applied,
		Duplicates: result.Duplicates,
		Unmatched:  result.Unmatched,
	})
}
