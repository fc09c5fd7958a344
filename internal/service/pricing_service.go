package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/mapper"
	"github.com/procost/enquiry-api/internal/pricing"
	"go.uber.org/zap"
)

// PricingService prices ad-hoc items without storing anything
type PricingService struct {
	engine    *pricing.Engine
	currency  string
	factoryID int64
	logger    *zap.Logger
}

func NewPricingService(engine *pricing.Engine, currency string, factoryID int64, logger *zap.Logger) *PricingService {
	if currency == "" {
		currency = DefaultQuoteOptions().Currency
	}
	if factoryID <= 0 {
		factoryID = pricing.DefaultFactoryID
	}
	return &PricingService{
		engine:    engine,
		currency:  currency,
		factoryID: factoryID,
		logger:    logger,
	}
}

// Preview returns the component breakdown for a single item
func (s *PricingService) Preview(ctx context.Context, req *domain.PricingPreviewRequest) (*domain.PricingBreakdownDTO, error) {
	if strings.TrimSpace(req.Product) == "" {
		return nil, fmt.Errorf("%w: product is required", ErrInvalidInput)
	}

	item := domain.ConversationItem{
		Product:             req.Product,
		TrimType:            req.TrimType,
		RMSpec:              req.RMSpec,
		ProductionType:      req.ProductionType,
		PackagingType:       req.PackagingType,
		TransportMode:       req.TransportMode,
		SpecialInstructions: req.SpecialInstructions,
		RequestedQuantity:   req.Quantity,
	}

	factoryID := s.factoryID
	if req.FactoryID != nil {
		factoryID = *req.FactoryID
	}

	result := s.engine.Price(ctx, item, factoryID)
	s.logger.Debug("Pricing preview",
		zap.String("product", req.Product),
		zap.Float64("unit_price", result.UnitPrice),
		zap.Strings("missing", result.MissingComponents()))

	dto := mapper.ToPricingBreakdownDTO(result, s.currency)
	return &dto, nil
}
