package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/service"
	"go.uber.org/zap"
)

type QuoteHandler struct {
	quoteService *service.QuoteService
	logger       *zap.Logger
}

func NewQuoteHandler(quoteService *service.QuoteService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		logger:       logger,
	}
}

// Generate godoc
// @Summary Generate quote
// @Description Prices the items of a conversation and records a quote. Items given in the request override the computed lines by position.
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body domain.GenerateQuoteRequest true "Conversation and optional overrides"
// @Success 201 {object} domain.QuoteDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError "Conversation not found"
// @Failure 503 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /quotes/generate [post]
func (h *QuoteHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateQuoteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	quote, err := h.quoteService.GenerateQuote(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to generate quote", zap.Error(err), zap.String("conversation", req.ConversationID))
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/quotes/"+quote.Number)
	respondJSON(w, http.StatusCreated, quote)
}

// ListByConversation godoc
// @Summary Quotes of a conversation
// @Description Returns every quote generated for a conversation, newest first
// @Tags Quotes
// @Produce json
// @Param id path string true "Conversation number or UUID"
// @Success 200 {array} domain.QuoteDTO
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /conversations/{id}/quotes [get]
func (h *QuoteHandler) ListByConversation(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	result, err := h.quoteService.ListByConversation(r.Context(), ref)
	if err != nil {
		h.logger.Warn("failed to list conversation quotes", zap.Error(err), zap.String("conversation", ref))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// List godoc
// @Summary List quotes
// @Tags Quotes
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Security ApiKeyAuth
// @Router /quotes [get]
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := h.quoteService.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list quotes", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Get godoc
// @Summary Get quote
// @Description Returns a quote with its lines and per kg costs
// @Tags Quotes
// @Produce json
// @Param number path string true "Quote number, e.g. QUO-2025-0001"
// @Success 200 {object} domain.QuoteDTO
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /quotes/{number} [get]
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	quote, err := h.quoteService.GetByNumber(r.Context(), number)
	if err != nil {
		h.logger.Warn("failed to get quote", zap.Error(err), zap.String("quote_number", number))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// Send godoc
// @Summary Mark quote as sent
// @Tags Quotes
// @Produce json
// @Param number path string true "Quote number"
// @Success 200 {object} domain.QuoteDTO
// @Failure 400 {object} domain.APIError "Invalid transition"
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /quotes/{number}/send [post]
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "send", h.quoteService.Send)
}

// Accept godoc
// @Summary Mark quote as accepted
// @Tags Quotes
// @Produce json
// @Param number path string true "Quote number"
// @Success 200 {object} domain.QuoteDTO
// @Failure 400 {object} domain.APIError "Invalid transition"
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /quotes/{number}/accept [post]
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept", h.quoteService.Accept)
}

// Reject godoc
// @Summary Mark quote as rejected
// @Tags Quotes
// @Produce json
// @Param number path string true "Quote number"
// @Success 200 {object} domain.QuoteDTO
// @Failure 400 {object} domain.APIError "Invalid transition"
// @Failure 404 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /quotes/{number}/reject [post]
func (h *QuoteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject", h.quoteService.Reject)
}

func (h *QuoteHandler) transition(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, number string) (*domain.QuoteDTO, error)) {
	number := chi.URLParam(r, "number")

	quote, err := fn(r.Context(), number)
	if err != nil {
		h.logger.Warn("quote transition failed",
			zap.Error(err),
			zap.String("action", action),
			zap.String("quote_number", number))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}
