package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/service"
	"go.uber.org/zap"
)

// ConversationHandler exposes enquiry conversations
type ConversationHandler struct {
	conversationService *service.ConversationService
	logger              *zap.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		logger:              logger,
	}
}

// List godoc
// @Summary List conversations
// @Description Returns a paginated list of conversations, newest first
// @Tags Conversations
// @Produce json
// @Param status query string false "Filter by status, e.g. QUOTED"
// @Param days query int false "Only conversations received in the last N days"
// @Param customerId query string false "Filter by customer ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /conversations [get]
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	query := r.URL.Query()

	filter := service.ConversationFilter{Status: query.Get("status")}
	if days := query.Get("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid days: must be an integer")
			return
		}
		filter.Days = n
	}
	if cid := query.Get("customerId"); cid != "" {
		id, err := uuid.Parse(cid)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid customerId: must be a valid UUID")
			return
		}
		filter.CustomerID = &id
	}

	result, err := h.conversationService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListRecent godoc
// @Summary Recent conversations
// @Tags Conversations
// @Produce json
// @Param days query int false "Window in days" default(7)
// @Success 200 {array} domain.ConversationDTO
// @Security ApiKeyAuth
// @Router /conversations/recent [get]
func (h *ConversationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	result, err := h.conversationService.ListRecent(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to list recent conversations", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Stats godoc
// @Summary Enquiry dashboard statistics
// @Description Counts conversations per status and customers, and lists the five newest enquiries of the last seven days
// @Tags Conversations
// @Produce json
// @Success 200 {object} domain.ConversationStatsDTO
// @Security ApiKeyAuth
// @Router /conversations/stats [get]
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.conversationService.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get conversation stats", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListByStatus godoc
// @Summary Conversations in one status
// @Tags Conversations
// @Produce json
// @Param status path string true "Status, e.g. RECEIVED"
// @Success 200 {array} domain.ConversationDTO
// @Failure 400 {object} domain.APIError "Unknown status"
// @Security ApiKeyAuth
// @Router /conversations/status/{status} [get]
func (h *ConversationHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.conversationService.ListByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		h.logger.Error("failed to list conversations by status", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Get godoc
// @Summary Get conversation
// @Description Returns a conversation with its items and history text
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation number (ENQ-2025-0001) or UUID"
// @Success 200 {object} domain.ConversationDTO
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /conversations/{id} [get]
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	result, err := h.conversationService.GetByExternalID(r.Context(), ref)
	if err != nil {
		h.logger.Warn("failed to get conversation", zap.Error(err), zap.String("conversation", ref))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// History godoc
// @Summary Conversation history
// @Description Returns the recorded events of a conversation in order
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation number or UUID"
// @Success 200 {array} domain.ConversationEventDTO
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /conversations/{id}/history [get]
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	result, err := h.conversationService.History(r.Context(), ref)
	if err != nil {
		h.logger.Warn("failed to get conversation history", zap.Error(err), zap.String("conversation", ref))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// UpdateStatus godoc
// @Summary Change conversation status
// @Description Moves a conversation forward. Backward moves and changes out of a terminal status are rejected.
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation number or UUID"
// @Param request body domain.UpdateConversationStatusRequest true "New status"
// @Success 200 {object} domain.ConversationDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /conversations/{id}/status [put]
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	var req domain.UpdateConversationStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.conversationService.UpdateStatus(r.Context(), ref, req.Status, req.Note)
	if err != nil {
		h.logger.Warn("failed to update conversation status",
			zap.Error(err),
			zap.String("conversation", ref),
			zap.String("status", req.Status))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
