package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/service"
	"go.uber.org/zap"
)

// EmailHandler exposes the inbound email log
type EmailHandler struct {
	emailService *service.EmailService
	logger       *zap.Logger
}

func NewEmailHandler(emailService *service.EmailService, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		logger:       logger,
	}
}

// List godoc
// @Summary List inbound emails
// @Tags Emails
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Security ApiKeyAuth
// @Router /emails [get]
func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := h.emailService.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list emails", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListOrphans godoc
// @Summary List orphan emails
// @Description Emails that could not be linked to a conversation
// @Tags Emails
// @Produce json
// @Success 200 {array} domain.InboundEmailDTO
// @Security ApiKeyAuth
// @Router /emails/orphans [get]
func (h *EmailHandler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	result, err := h.emailService.ListOrphans(r.Context())
	if err != nil {
		h.logger.Error("failed to list orphan emails", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Stats godoc
// @Summary Inbound email statistics
// @Tags Emails
// @Produce json
// @Success 200 {object} domain.EmailStatsDTO
// @Security ApiKeyAuth
// @Router /emails/stats [get]
func (h *EmailHandler) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.emailService.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get email stats", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Classify godoc
// @Summary Reclassify an email
// @Description Sets the stage of an email by hand. An orphan reclassified as an enquiry opens a conversation.
// @Tags Emails
// @Accept json
// @Produce json
// @Param id path string true "Email ID"
// @Param request body domain.ClassifyEmailRequest true "Stage"
// @Success 200 {object} domain.InboundEmailDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /emails/{id}/classification [put]
func (h *EmailHandler) Classify(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid email ID: must be a valid UUID")
		return
	}

	var req domain.ClassifyEmailRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.emailService.Classify(r.Context(), id, req.Stage)
	if err != nil {
		h.logger.Warn("failed to classify email", zap.Error(err), zap.String("email_id", id.String()))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
