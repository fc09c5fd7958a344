package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one.
// Postgres also carries a gen_random_uuid() default in the migrations.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Customer is the company behind an inbound email address
type Customer struct {
	BaseModel
	CompanyName   string `gorm:"type:varchar(200);not null;index;column:company_name"`
	ContactPerson string `gorm:"type:varchar(200);column:contact_person"`
	Email         string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone         string `gorm:"type:varchar(50)"`
	Address       string `gorm:"type:varchar(500)"`
	Country       string `gorm:"type:varchar(100)"`
}

// Conversation is one sales thread, from first enquiry to closure or conversion
type Conversation struct {
	BaseModel
	ExternalID string `gorm:"type:varchar(50);not null;uniqueIndex;column:external_id"`
	ThreadKey  string `gorm:"type:varchar(300);not null;index;column:thread_key"`
	// OpenThreadKey mirrors ThreadKey while the conversation is open and is
	// NULL once terminal, so the unique index only covers open conversations.
	OpenThreadKey   *string            `gorm:"type:varchar(300);uniqueIndex;column:open_thread_key"`
	Subject         string             `gorm:"type:varchar(500)"`
	Body            string             `gorm:"type:text"`
	CustomerID      uuid.UUID          `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer        *Customer          `gorm:"foreignKey:CustomerID"`
	Status          ConversationStatus `gorm:"type:varchar(50);not null;index"`
	LastStage       Stage              `gorm:"type:varchar(50);not null;column:last_stage"`
	History         string             `gorm:"type:text"`
	ReceivedAt      time.Time          `gorm:"not null;index;column:received_at"`
	Processed       bool               `gorm:"not null;default:false"`
	ProcessedAt     *time.Time         `gorm:"column:processed_at"`
	ProcessingNotes string             `gorm:"type:text;column:processing_notes"`
	Version         int                `gorm:"not null;default:1"`
	Items           []ConversationItem `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// SetStatus changes the status and keeps OpenThreadKey in step with it.
func (c *Conversation) SetStatus(status ConversationStatus) {
	c.Status = status
	if status.IsTerminal() {
		c.OpenThreadKey = nil
		return
	}
	key := c.ThreadKey
	c.OpenThreadKey = &key
}

// ConversationItem is one requested product line inside a Conversation
type ConversationItem struct {
	BaseModel
	ConversationID      uuid.UUID       `gorm:"type:uuid;not null;index;column:conversation_id"`
	Position            int             `gorm:"not null;default:0"`
	SourceKey           string          `gorm:"type:varchar(300);index;column:source_key"`
	Product             string          `gorm:"type:varchar(200)"`
	TrimType            string          `gorm:"type:varchar(100);column:trim_type"`
	RMSpec              string          `gorm:"type:varchar(100);column:rm_spec"`
	ProductionType      string          `gorm:"type:varchar(100);column:production_type"`
	PackagingType       string          `gorm:"type:varchar(100);column:packaging_type"`
	PackMaterial        string          `gorm:"type:varchar(100);column:pack_material"`
	BoxQuantity         string          `gorm:"type:varchar(50);column:box_quantity"`
	TransportMode       string          `gorm:"type:varchar(50);column:transport_mode"`
	RequestedQuantity   *int            `gorm:"column:requested_quantity"`
	DeliveryRequirement string          `gorm:"type:varchar(200);column:delivery_requirement"`
	SpecialInstructions string          `gorm:"type:text;column:special_instructions"`
	CustomerReference   string          `gorm:"type:varchar(100);column:customer_reference"`
	ProductDescription  string          `gorm:"type:text;column:product_description"`
	Confidence          ConfidenceLevel `gorm:"type:varchar(20);not null;default:'LOW'"`
	UnitPrice           *float64        `gorm:"type:decimal(15,4);column:unit_price"`
	TotalPrice          *float64        `gorm:"type:decimal(15,2);column:total_price"`
	Currency            string          `gorm:"type:varchar(10)"`
}

// Quantity returns the requested quantity, or 1 when none was given.
func (i *ConversationItem) Quantity() int {
	if i.RequestedQuantity == nil {
		return 1
	}
	return *i.RequestedQuantity
}

// ConversationEvent records one applied inbound email or status change
type ConversationEvent struct {
	ID             uuid.UUID           `gorm:"type:uuid;primary_key"`
	ConversationID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_event_message;column:conversation_id"`
	MessageKey     string              `gorm:"type:varchar(300);not null;uniqueIndex:idx_conversation_event_message;column:message_key"`
	Stage          *Stage              `gorm:"type:varchar(50)"`
	FromStatus     *ConversationStatus `gorm:"type:varchar(50);column:from_status"`
	ToStatus       ConversationStatus  `gorm:"type:varchar(50);not null;column:to_status"`
	Note           string              `gorm:"type:text"`
	OccurredAt     time.Time           `gorm:"not null;column:occurred_at"`
}

// BeforeCreate assigns an ID when the caller did not set one.
func (e *ConversationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// InboundEmail stores every webhook delivery, linked or orphaned
type InboundEmail struct {
	BaseModel
	MessageKey           string     `gorm:"type:varchar(300);not null;uniqueIndex;column:message_key"`
	MessageID            string     `gorm:"type:varchar(300);column:message_id"`
	ThreadKey            string     `gorm:"type:varchar(300);not null;index;column:thread_key"`
	FromEmail            string     `gorm:"type:varchar(255);not null;index;column:from_email"`
	ToEmail              string     `gorm:"type:varchar(255);column:to_email"`
	Recipients           string     `gorm:"type:text"`
	Subject              string     `gorm:"type:varchar(500)"`
	Body                 string     `gorm:"type:text"`
	ReceivedAt           time.Time  `gorm:"not null;index;column:received_at"`
	Stage                Stage      `gorm:"type:varchar(50);not null;index"`
	EmailType            EmailType  `gorm:"type:varchar(50);not null;column:email_type"`
	ManualClassification *Stage     `gorm:"type:varchar(50);column:manual_classification"`
	QuoteReference       string     `gorm:"type:varchar(50);column:quote_reference"`
	OrderReference       string     `gorm:"type:varchar(50);column:order_reference"`
	SuggestedAction      string     `gorm:"type:varchar(100);column:suggested_action"`
	ConversationID       *uuid.UUID `gorm:"type:uuid;index;column:conversation_id"`
	Orphan               bool       `gorm:"not null;default:false;index"`
	Processed            bool       `gorm:"not null;default:false"`
	ArchivePath          string     `gorm:"type:varchar(500);column:archive_path"`
	Notes                string     `gorm:"type:text"`
}

// Quote is a priced snapshot of a Conversation
type Quote struct {
	BaseModel
	Number         string        `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status         QuoteStatus   `gorm:"type:varchar(50);not null;index"`
	TotalAmount    float64       `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	Currency       string        `gorm:"type:varchar(10);not null"`
	ValidityPeriod string        `gorm:"type:varchar(50);column:validity_period"`
	SentAt         *time.Time    `gorm:"column:sent_at"`
	AcceptedAt     *time.Time    `gorm:"column:accepted_at"`
	RejectedAt     *time.Time    `gorm:"column:rejected_at"`
	CustomerID     uuid.UUID     `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer       *Customer     `gorm:"foreignKey:CustomerID"`
	ConversationID uuid.UUID     `gorm:"type:uuid;not null;index;column:conversation_id"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID"`
	Items          []QuoteItem   `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}

// QuoteItem is one priced line inside a Quote
type QuoteItem struct {
	BaseModel
	QuoteID            uuid.UUID `gorm:"type:uuid;not null;index;column:quote_id"`
	ConversationItemID uuid.UUID `gorm:"type:uuid;not null;index;column:conversation_item_id"`
	Position           int       `gorm:"not null;default:0"`
	ProductDescription string    `gorm:"type:text;column:product_description"`
	Quantity           int       `gorm:"not null;default:0"`
	UnitPrice          float64   `gorm:"type:decimal(15,4);not null;default:0;column:unit_price"`
	TotalPrice         float64   `gorm:"type:decimal(15,2);not null;default:0;column:total_price"`
	Currency           string    `gorm:"type:varchar(10);not null"`
	Notes              string    `gorm:"type:text"`
}

// NumberSequence tracks the last used sequence for a prefix/year combination
type NumberSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Prefix       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_number_sequence_prefix_year"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequence_prefix_year"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one.
func (n *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// FilingRate is the processing rate per kg for a product/trim/raw material spec
type FilingRate struct {
	BaseModel
	Product   string  `gorm:"type:varchar(200);not null;uniqueIndex:idx_filing_rate_key"`
	TrimType  string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_filing_rate_key;column:trim_type"`
	RMSpec    string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_filing_rate_key;column:rm_spec"`
	RatePerKg float64 `gorm:"type:decimal(12,4);not null;column:rate_per_kg"`
}

// PackagingRate is the packaging rate per kg
type PackagingRate struct {
	BaseModel
	ProductionType string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_packaging_rate_key;column:production_type"`
	Product        string  `gorm:"type:varchar(200);not null;uniqueIndex:idx_packaging_rate_key"`
	PackagingType  string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_packaging_rate_key;column:packaging_type"`
	TransportMode  string  `gorm:"type:varchar(50);not null;uniqueIndex:idx_packaging_rate_key;column:transport_mode"`
	BoxQuantity    string  `gorm:"type:varchar(50);column:box_quantity"`
	RatePerKg      float64 `gorm:"type:decimal(12,4);not null;column:rate_per_kg"`
}

// ChargeRate is a factory-specific surcharge
type ChargeRate struct {
	BaseModel
	FactoryID      int64   `gorm:"not null;uniqueIndex:idx_charge_rate_key;column:factory_id"`
	ChargeKind     string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_charge_rate_key;column:charge_kind"`
	ProductionType string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_charge_rate_key;column:production_type"`
	Product        string  `gorm:"type:varchar(200);not null;uniqueIndex:idx_charge_rate_key"`
	Method         string  `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_charge_rate_key"`
	RateValue      float64 `gorm:"type:decimal(12,4);not null;column:rate_value"`
	Currency       string  `gorm:"type:varchar(10)"`
}

// Rate catalog lookup keys

type FilingRateKey struct {
	Product  string
	TrimType string
	RMSpec   string
}

type PackagingRateKey struct {
	ProductionType string
	Product        string
	PackagingType  string
	TransportMode  string
}

type ChargeRateKey struct {
	FactoryID      int64
	ChargeKind     string
	ProductionType string
	Product        string
	Method         string
}

// LineItemDraft is one product line produced by an extractor, before it is
// attached to a conversation
type LineItemDraft struct {
	Product             string
	TrimType            string
	RMSpec              string
	ProductionType      string
	PackagingType       string
	PackMaterial        string
	BoxQuantity         string
	TransportMode       string
	Quantity            *int
	DeliveryRequirement string
	SpecialInstructions string
	CustomerReference   string
	ProductDescription  string
	Confidence          ConfidenceLevel
}
