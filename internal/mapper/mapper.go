package mapper

import (
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/pricing"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ToCustomerDTO converts Customer to CustomerDTO
func ToCustomerDTO(customer *domain.Customer) domain.CustomerDTO {
	return domain.CustomerDTO{
		ID:            customer.ID,
		CompanyName:   customer.CompanyName,
		ContactPerson: customer.ContactPerson,
		Email:         customer.Email,
		Phone:         customer.Phone,
		Address:       customer.Address,
		Country:       customer.Country,
		CreatedAt:     formatTime(customer.CreatedAt),
	}
}

// ToConversationDTO converts Conversation to ConversationDTO, including items
func ToConversationDTO(c *domain.Conversation) domain.ConversationDTO {
	dto := domain.ConversationDTO{
		ID:              c.ExternalID,
		ThreadKey:       c.ThreadKey,
		Subject:         c.Subject,
		Body:            c.Body,
		Status:          c.Status,
		LastStage:       c.LastStage,
		History:         c.History,
		ReceivedAt:      formatTime(c.ReceivedAt),
		Processed:       c.Processed,
		ProcessingNotes: c.ProcessingNotes,
		Items:           make([]domain.ConversationItemDTO, 0, len(c.Items)),
		CreatedAt:       formatTime(c.CreatedAt),
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
	if c.Customer != nil {
		customer := ToCustomerDTO(c.Customer)
		dto.Customer = &customer
	}
	for i := range c.Items {
		dto.Items = append(dto.Items, ToConversationItemDTO(&c.Items[i]))
	}
	return dto
}

// ToConversationSummaryDTO converts Conversation without body and history, for lists
func ToConversationSummaryDTO(c *domain.Conversation) domain.ConversationDTO {
	dto := ToConversationDTO(c)
	dto.Body = ""
	dto.History = ""
	return dto
}

// ToConversationItemDTO converts ConversationItem to ConversationItemDTO
func ToConversationItemDTO(item *domain.ConversationItem) domain.ConversationItemDTO {
	return domain.ConversationItemDTO{
		ID:                  item.ID,
		Position:            item.Position,
		Product:             item.Product,
		TrimType:            item.TrimType,
		RMSpec:              item.RMSpec,
		ProductionType:      item.ProductionType,
		PackagingType:       item.PackagingType,
		PackMaterial:        item.PackMaterial,
		BoxQuantity:         item.BoxQuantity,
		TransportMode:       item.TransportMode,
		RequestedQuantity:   item.RequestedQuantity,
		DeliveryRequirement: item.DeliveryRequirement,
		SpecialInstructions: item.SpecialInstructions,
		CustomerReference:   item.CustomerReference,
		ProductDescription:  item.ProductDescription,
		Confidence:          item.Confidence,
		UnitPrice:           item.UnitPrice,
		TotalPrice:          item.TotalPrice,
		Currency:            item.Currency,
	}
}

// ToConversationEventDTO converts ConversationEvent to ConversationEventDTO
func ToConversationEventDTO(e *domain.ConversationEvent) domain.ConversationEventDTO {
	return domain.ConversationEventDTO{
		MessageKey: e.MessageKey,
		Stage:      e.Stage,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Note:       e.Note,
		OccurredAt: formatTime(e.OccurredAt),
	}
}

// ToInboundEmailDTO converts InboundEmail to InboundEmailDTO. conversationID
// is the public number of the linked conversation, if any.
func ToInboundEmailDTO(e *domain.InboundEmail, conversationID string) domain.InboundEmailDTO {
	return domain.InboundEmailDTO{
		ID:                   e.ID,
		MessageKey:           e.MessageKey,
		ThreadKey:            e.ThreadKey,
		FromEmail:            e.FromEmail,
		ToEmail:              e.ToEmail,
		Subject:              e.Subject,
		Body:                 e.Body,
		ReceivedAt:           formatTime(e.ReceivedAt),
		Stage:                e.Stage,
		EmailType:            e.EmailType,
		ManualClassification: e.ManualClassification,
		QuoteReference:       e.QuoteReference,
		OrderReference:       e.OrderReference,
		SuggestedAction:      e.SuggestedAction,
		ConversationID:       conversationID,
		Orphan:               e.Orphan,
		Processed:            e.Processed,
		Notes:                e.Notes,
	}
}

// ToQuoteDTO converts Quote to QuoteDTO, including items when loaded
func ToQuoteDTO(q *domain.Quote) domain.QuoteDTO {
	dto := domain.QuoteDTO{
		ID:             q.ID,
		Number:         q.Number,
		Status:         q.Status,
		TotalAmount:    q.TotalAmount,
		Currency:       q.Currency,
		ValidityPeriod: q.ValidityPeriod,
		CreatedAt:      formatTime(q.CreatedAt),
		SentAt:         formatOptionalTime(q.SentAt),
		AcceptedAt:     formatOptionalTime(q.AcceptedAt),
		RejectedAt:     formatOptionalTime(q.RejectedAt),
	}
	if q.Conversation != nil {
		dto.ConversationID = q.Conversation.ExternalID
	}
	if q.Customer != nil {
		customer := ToCustomerDTO(q.Customer)
		dto.Customer = &customer
	}
	for i := range q.Items {
		dto.Items = append(dto.Items, ToQuoteItemDTO(&q.Items[i]))
	}
	return dto
}

// ToQuoteItemDTO converts QuoteItem to QuoteItemDTO. CostPerKg is set when
// the quantity is positive.
func ToQuoteItemDTO(item *domain.QuoteItem) domain.QuoteItemDTO {
	dto := domain.QuoteItemDTO{
		ID:                 item.ID,
		Position:           item.Position,
		ProductDescription: item.ProductDescription,
		Quantity:           item.Quantity,
		UnitPrice:          item.UnitPrice,
		TotalPrice:         item.TotalPrice,
		Currency:           item.Currency,
		Notes:              item.Notes,
	}
	if item.Quantity > 0 {
		costPerKg := item.TotalPrice / float64(item.Quantity)
		dto.CostPerKg = &costPerKg
	}
	return dto
}

// ToPricingBreakdownDTO converts a pricing result to PricingBreakdownDTO
func ToPricingBreakdownDTO(result pricing.Result, currency string) domain.PricingBreakdownDTO {
	dto := domain.PricingBreakdownDTO{
		UnitPrice:  result.UnitPrice,
		TotalPrice: result.TotalPrice,
		Quantity:   result.Quantity,
		Currency:   currency,
		Components: make([]domain.PricingComponentDTO, 0, len(result.Components)),
	}
	for _, c := range result.Components {
		component := domain.PricingComponentDTO{
			Kind:    c.Kind,
			Amount:  c.Amount,
			Found:   c.Found,
			Applied: !c.Skipped,
		}
		if c.Err != nil {
			component.Error = c.Err.Error()
		}
		dto.Components = append(dto.Components, component)
	}
	return dto
}

// ToEmailStatsDTO builds the email statistics response
func ToEmailStatsDTO(total, orphans, processed int64, byStage map[domain.Stage]int64) domain.EmailStatsDTO {
	dto := domain.EmailStatsDTO{
		Total:     total,
		Orphans:   orphans,
		Processed: processed,
		ByStage:   make(map[domain.Stage]int64, len(domain.AllStages)),
	}
	for _, stage := range domain.AllStages {
		dto.ByStage[stage] = byStage[stage]
	}
	return dto
}

// ToConversationStatsDTO fills in zero counts for statuses without conversations
func ToConversationStatsDTO(byStatus map[domain.ConversationStatus]int64, customers int64, recent []domain.Conversation) domain.ConversationStatsDTO {
	dto := domain.ConversationStatsDTO{
		ByStatus:        make(map[domain.ConversationStatus]int64, len(domain.AllConversationStatuses)),
		TotalCustomers:  customers,
		RecentEnquiries: make([]domain.ConversationDTO, 0, len(recent)),
	}
	for _, status := range domain.AllConversationStatuses {
		dto.ByStatus[status] = byStatus[status]
		dto.Total += byStatus[status]
	}
	for i := range recent {
		dto.RecentEnquiries = append(dto.RecentEnquiries, ToConversationSummaryDTO(&recent[i]))
	}
	return dto
}
