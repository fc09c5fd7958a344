package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type CustomerDTO struct {
	ID            uuid.UUID `json:"id"`
	CompanyName   string    `json:"companyName"`
	ContactPerson string    `json:"contactPerson,omitempty"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	Country       string    `json:"country,omitempty"`
	CreatedAt     string    `json:"createdAt"` // ISO 8601
}

type ConversationDTO struct {
	ID              string                `json:"id"`
	ThreadKey       string                `json:"threadKey"`
	Subject         string                `json:"subject"`
	Body            string                `json:"body,omitempty"`
	Status          ConversationStatus    `json:"status"`
	LastStage       Stage                 `json:"lastStage"`
	Customer        *CustomerDTO          `json:"customer,omitempty"`
	History         string                `json:"history,omitempty"`
	ReceivedAt      string                `json:"receivedAt"`
	Processed       bool                  `json:"processed"`
	ProcessingNotes string                `json:"processingNotes,omitempty"`
	Items           []ConversationItemDTO `json:"items"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
}

type ConversationItemDTO struct {
	ID                  uuid.UUID       `json:"id"`
	Position            int             `json:"position"`
	Product             string          `json:"product"`
	TrimType            string          `json:"trimType,omitempty"`
	RMSpec              string          `json:"rmSpec,omitempty"`
	ProductionType      string          `json:"productionType,omitempty"`
	PackagingType       string          `json:"packagingType,omitempty"`
	PackMaterial        string          `json:"packMaterial,omitempty"`
	BoxQuantity         string          `json:"boxQuantity,omitempty"`
	TransportMode       string          `json:"transportMode,omitempty"`
	RequestedQuantity   *int            `json:"requestedQuantity,omitempty"`
	DeliveryRequirement string          `json:"deliveryRequirement,omitempty"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	CustomerReference   string          `json:"customerReference,omitempty"`
	ProductDescription  string          `json:"productDescription,omitempty"`
	Confidence          ConfidenceLevel `json:"confidence"`
	UnitPrice           *float64        `json:"unitPrice,omitempty"`
	TotalPrice          *float64        `json:"totalPrice,omitempty"`
	Currency            string          `json:"currency,omitempty"`
}

type ConversationEventDTO struct {
	MessageKey string              `json:"messageKey"`
	Stage      *Stage              `json:"stage,omitempty"`
	FromStatus *ConversationStatus `json:"fromStatus,omitempty"`
	ToStatus   ConversationStatus  `json:"toStatus"`
	Note       string              `json:"note,omitempty"`
	OccurredAt string              `json:"occurredAt"`
}

type InboundEmailDTO struct {
	ID                   uuid.UUID `json:"id"`
	MessageKey           string    `json:"messageKey"`
	ThreadKey            string    `json:"threadKey"`
	FromEmail            string    `json:"fromEmail"`
	ToEmail              string    `json:"toEmail,omitempty"`
	Subject              string    `json:"subject"`
	Body                 string    `json:"body,omitempty"`
	ReceivedAt           string    `json:"receivedAt"`
	Stage                Stage     `json:"stage"`
	EmailType            EmailType `json:"emailType"`
	ManualClassification *Stage    `json:"manualClassification,omitempty"`
	QuoteReference       string    `json:"quoteReference,omitempty"`
	OrderReference       string    `json:"orderReference,omitempty"`
	SuggestedAction      string    `json:"suggestedAction"`
	ConversationID       string    `json:"conversationId,omitempty"`
	Orphan               bool      `json:"orphan"`
	Processed            bool      `json:"processed"`
	Notes                string    `json:"notes,omitempty"`
}

type EmailStatsDTO struct {
	Total     int64           `json:"total"`
	Orphans   int64           `json:"orphans"`
	Processed int64           `json:"processed"`
	ByStage   map[Stage]int64 `json:"byStage"`
}

// ConversationStatsDTO summarizes the enquiry pipeline for a dashboard
type ConversationStatsDTO struct {
	Total           int64                        `json:"totalEnquiries"`
	ByStatus        map[ConversationStatus]int64 `json:"byStatus"`
	TotalCustomers  int64                        `json:"totalCustomers"`
	RecentEnquiries []ConversationDTO            `json:"recentEnquiries"`
}

type QuoteDTO struct {
	ID             uuid.UUID      `json:"id"`
	Number         string         `json:"quoteNumber"`
	Status         QuoteStatus    `json:"status"`
	TotalAmount    float64        `json:"totalAmount"`
	Currency       string         `json:"currency"`
	ValidityPeriod string         `json:"validityPeriod"`
	ConversationID string         `json:"conversationId,omitempty"`
	Customer       *CustomerDTO   `json:"customer,omitempty"`
	Items          []QuoteItemDTO `json:"items,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	SentAt         string         `json:"sentAt,omitempty"`
	AcceptedAt     string         `json:"acceptedAt,omitempty"`
	RejectedAt     string         `json:"rejectedAt,omitempty"`
}

type QuoteItemDTO struct {
	ID                 uuid.UUID `json:"id"`
	Position           int       `json:"position"`
	ProductDescription string    `json:"productDescription"`
	Quantity           int       `json:"quantity"`
	UnitPrice          float64   `json:"unitPrice"`
	TotalPrice         float64   `json:"totalPrice"`
	CostPerKg          *float64  `json:"costPerKg,omitempty"`
	Currency           string    `json:"currency"`
	Notes              string    `json:"notes,omitempty"`
}

type PricingComponentDTO struct {
	Kind    string  `json:"kind"`
	Amount  float64 `json:"amount"`
	Found   bool    `json:"found"`
	Applied bool    `json:"applied"`
	Error   string  `json:"error,omitempty"`
}

type PricingBreakdownDTO struct {
	UnitPrice  float64               `json:"unitPrice"`
	TotalPrice float64               `json:"totalPrice"`
	Quantity   int                   `json:"quantity"`
	Currency   string                `json:"currency"`
	Components []PricingComponentDTO `json:"components"`
}

// ReceiveEmailResponse is returned by the inbound email webhook
type ReceiveEmailResponse struct {
	Success         bool               `json:"success"`
	Duplicate       bool               `json:"duplicate"`
	Message         string             `json:"message"`
	Timestamp       int64              `json:"timestamp"`
	FromEmail       string             `json:"fromEmail"`
	Subject         string             `json:"subject"`
	EmailType       EmailType          `json:"emailType"`
	EmailStage      Stage              `json:"emailStage"`
	EmailThreadID   string             `json:"emailThreadId"`
	MessageID       string             `json:"messageId,omitempty"`
	ThreadID        string             `json:"threadId,omitempty"`
	ConversationID  string             `json:"conversationId,omitempty"`
	QuoteReference  string             `json:"quoteReference,omitempty"`
	OrderReference  string             `json:"orderReference,omitempty"`
	CustomerID      uuid.UUID          `json:"customerId"`
	CustomerName    string             `json:"customerName,omitempty"`
	CompanyName     string             `json:"companyName,omitempty"`
	EnquiryID       string             `json:"enquiryId,omitempty"`
	EnquiryStatus   ConversationStatus `json:"enquiryStatus,omitempty"`
	ItemsCount      int                `json:"itemsCount"`
	Orphan          bool               `json:"orphan"`
	SuggestedAction string             `json:"suggestedAction"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// API Response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// Request DTOs

type ReceiveEmailRequest struct {
	FromEmail      string `json:"fromEmail" validate:"required,max=255"`
	ToEmail        string `json:"toEmail,omitempty"`
	Subject        string `json:"subject" validate:"max=500"`
	EmailBody      string `json:"emailBody"`
	MessageID      string `json:"messageId,omitempty" validate:"max=300"`
	ThreadID       string `json:"threadId,omitempty" validate:"max=250"`
	ConversationID string `json:"conversationId,omitempty" validate:"max=250"`
	InReplyTo      string `json:"inReplyTo,omitempty" validate:"max=300"`
	ReceivedAt     string `json:"receivedAt,omitempty"`
}

type GenerateQuoteRequest struct {
	ConversationID string                     `json:"conversationId" validate:"required"`
	Items          []QuoteItemOverrideRequest `json:"items,omitempty" validate:"dive"`
}

type QuoteItemOverrideRequest struct {
	ProductDescription string  `json:"productDescription,omitempty"`
	Quantity           int     `json:"quantity" validate:"gte=0"`
	TotalCost          float64 `json:"totalCost" validate:"gte=0"`
	Product            string  `json:"product,omitempty"`
	TrimType           string  `json:"trimType,omitempty"`
	RMSpec             string  `json:"rmSpec,omitempty"`
	ProductType        string  `json:"productType,omitempty"`
	PackagingType      string  `json:"packagingType,omitempty"`
	Currency           string  `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type UpdateConversationStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note,omitempty" validate:"max=1000"`
}

type ClassifyEmailRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type PricingPreviewRequest struct {
	Product             string `json:"product" validate:"required"`
	TrimType            string `json:"trimType,omitempty"`
	RMSpec              string `json:"rmSpec,omitempty"`
	ProductionType      string `json:"productionType,omitempty"`
	PackagingType       string `json:"packagingType,omitempty"`
	TransportMode       string `json:"transportMode,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
	Quantity            *int   `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	FactoryID           *int64 `json:"factoryId,omitempty" validate:"omitempty,gt=0"`
}
