package handler

import (
	"net/http"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler receives inbound emails from the mail integration
type WebhookHandler struct {
	ingestionService *service.IngestionService
	logger           *zap.Logger
}

func NewWebhookHandler(ingestionService *service.IngestionService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestionService: ingestionService,
		logger:           logger,
	}
}

// ReceiveEmail godoc
// @Summary Receive inbound email
// @Description Threads, classifies and records one inbound email. Redeliveries of a recorded message return the original outcome with duplicate=true.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param request body domain.ReceiveEmailRequest true "Inbound email"
// @Success 200 {object} domain.ReceiveEmailResponse
// @Failure 400 {object} domain.APIError
// @Failure 503 {object} domain.APIError "Thread busy, retry"
// @Failure 500 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /webhooks/email [post]
func (h *WebhookHandler) ReceiveEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceiveEmailRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	resp, err := h.ingestionService.Ingest(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to ingest email",
			zap.Error(err),
			zap.String("from", req.FromEmail),
			zap.String("message_id", req.MessageID))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
