package handler

import (
	"net/http"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/service"
	"go.uber.org/zap"
)

type PricingHandler struct {
	pricingService *service.PricingService
	logger         *zap.Logger
}

func NewPricingHandler(pricingService *service.PricingService, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{
		pricingService: pricingService,
		logger:         logger,
	}
}

// Preview godoc
// @Summary Price one item
// @Description Returns the per kg component breakdown for an ad-hoc item. Nothing is stored.
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body domain.PricingPreviewRequest true "Item"
// @Success 200 {object} domain.PricingBreakdownDTO
// @Failure 400 {object} domain.APIError
// @Security ApiKeyAuth
// @Router /pricing/preview [post]
func (h *PricingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req domain.PricingPreviewRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.pricingService.Preview(r.Context(), &req)
	if err != nil {
		h.logger.Warn("failed to price item", zap.Error(err), zap.String("product", req.Product))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
