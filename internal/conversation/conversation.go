// Package conversation holds the sales conversation state machine. Apply is
// pure: it computes the next conversation state from the current one and an
// inbound email, and leaves persistence to the caller.
package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
)

// HistoryTimeLayout is the timestamp format of conversation history lines
const HistoryTimeLayout = "2006-01-02T15:04:05"

// CreatedNote is the processing note of every conversation opened by an email
const CreatedNote = "Processed from inbound webhook"

// Kind is the result category of applying an inbound email
type Kind string

const (
	KindCreated  Kind = "CREATED"
	KindUpdated  Kind = "UPDATED"
	KindOrphaned Kind = "ORPHANED"
)

// Inbound is one classified inbound email
type Inbound struct {
	ThreadKey      string
	MessageKey     string
	CustomerID     uuid.UUID
	Stage          domain.Stage
	Subject        string
	Body           string
	Items          []domain.LineItemDraft
	ExtractionNote string
	ReceivedAt     time.Time
	Now            time.Time
}

// Outcome describes the effect of one inbound email
type Outcome struct {
	Kind Kind
	// Conversation is the new or updated conversation; nil when orphaned
	Conversation *domain.Conversation
	// NewItems are items to insert. For a created conversation they are also
	// set on Conversation.Items.
	NewItems      []domain.ConversationItem
	FromStatus    *domain.ConversationStatus
	ToStatus      domain.ConversationStatus
	StatusChanged bool
	// Note summarises the change for the audit event
	Note string
}

// transition is one row of the stage to status table
type transition struct {
	stages []domain.Stage
	tag    string
	apply  func(current domain.ConversationStatus) domain.ConversationStatus
}

func keep(current domain.ConversationStatus) domain.ConversationStatus { return current }

func to(status domain.ConversationStatus) func(domain.ConversationStatus) domain.ConversationStatus {
	return func(domain.ConversationStatus) domain.ConversationStatus { return status }
}

var transitions = []transition{
	{
		stages: []domain.Stage{domain.StageOrderPlacement, domain.StageOrderConfirmed},
		tag:    "ORDER CONFIRMED",
		apply:  to(domain.ConversationStatusConverted),
	},
	{
		stages: []domain.Stage{domain.StageQuoteSent},
		tag:    "QUOTE SENT",
		apply:  QuotedFrom,
	},
	{
		stages: []domain.Stage{domain.StageFollowUp},
		tag:    "FOLLOW-UP",
		apply:  keep,
	},
	{
		stages: []domain.Stage{domain.StageEnquiryClosed},
		tag:    "ENQUIRY CLOSED",
		apply:  to(domain.ConversationStatusCancelled),
	},
}

// QuotedFrom returns QUOTED when current is still before the quote, and
// current otherwise
func QuotedFrom(current domain.ConversationStatus) domain.ConversationStatus {
	if current == domain.ConversationStatusReceived || current == domain.ConversationStatusProcessing {
		return domain.ConversationStatusQuoted
	}
	return current
}

func lookup(stage domain.Stage) (string, func(domain.ConversationStatus) domain.ConversationStatus) {
	for _, t := range transitions {
		for _, s := range t.stages {
			if s == stage {
				return t.tag, t.apply
			}
		}
	}
	return fmt.Sprintf("EMAIL (%s)", stage), keep
}

// HistoryLine formats one history entry, including its leading newline
func HistoryLine(at time.Time, tag, text string) string {
	return fmt.Sprintf("\n[%s] %s: %s", at.Format(HistoryTimeLayout), tag, text)
}

// Apply computes the effect of in on existing, which is nil when no open
// conversation exists for the thread. existing is not modified.
func Apply(existing *domain.Conversation, in Inbound) Outcome {
	if existing == nil {
		if in.Stage != domain.StageInitialEnquiry {
			return Outcome{Kind: KindOrphaned, Note: fmt.Sprintf("no open conversation for %s email", in.Stage)}
		}
		return create(in)
	}
	return update(existing, in)
}

func create(in Inbound) Outcome {
	now := in.Now
	received := in.ReceivedAt
	if received.IsZero() {
		received = now
	}

	notes := CreatedNote
	if in.ExtractionNote != "" {
		notes += "; " + in.ExtractionNote
	}

	c := &domain.Conversation{
		ThreadKey:       in.ThreadKey,
		Subject:         in.Subject,
		Body:            in.Body,
		CustomerID:      in.CustomerID,
		LastStage:       in.Stage,
		ReceivedAt:      received,
		Processed:       true,
		ProcessedAt:     &now,
		ProcessingNotes: notes,
		Version:         1,
	}
	c.SetStatus(domain.ConversationStatusReceived)

	items := NewItems(in.Items, 0, in.MessageKey)
	c.Items = items

	return Outcome{
		Kind:          KindCreated,
		Conversation:  c,
		NewItems:      items,
		ToStatus:      c.Status,
		StatusChanged: true,
		Note:          fmt.Sprintf("conversation opened with %d items", len(items)),
	}
}

func update(existing *domain.Conversation, in Inbound) Outcome {
	c := *existing
	c.Items = nil

	from := existing.Status
	tag, next := lookup(in.Stage)
	target := next(from)
	if !from.CanTransitionTo(target) {
		target = from
	}
	c.SetStatus(target)
	c.LastStage = in.Stage

	var history strings.Builder
	history.WriteString(existing.History)
	history.WriteString(HistoryLine(in.Now, tag, in.Subject))

	var items []domain.ConversationItem
	if in.Stage != domain.StageInitialEnquiry && len(in.Items) > 0 {
		items = NewItems(in.Items, len(existing.Items), in.MessageKey)
		history.WriteString(HistoryLine(in.Now, "ADDITIONAL ITEMS EXTRACTED", fmt.Sprintf("%d items", len(items))))
	}
	c.History = history.String()

	if in.ExtractionNote != "" {
		c.ProcessingNotes = strings.TrimPrefix(c.ProcessingNotes+"; "+in.ExtractionNote, "; ")
	}

	note := tag
	if len(items) > 0 {
		note = fmt.Sprintf("%s; %d additional items", tag, len(items))
	}

	return Outcome{
		Kind:          KindUpdated,
		Conversation:  &c,
		NewItems:      items,
		FromStatus:    &from,
		ToStatus:      target,
		StatusChanged: target != from,
		Note:          note,
	}
}

// NewItems converts extracted drafts into conversation items, numbering
// their positions from offset
func NewItems(drafts []domain.LineItemDraft, offset int, sourceKey string) []domain.ConversationItem {
	if len(drafts) == 0 {
		return nil
	}
	items := make([]domain.ConversationItem, 0, len(drafts))
	for i, d := range drafts {
		confidence := d.Confidence
		if !confidence.IsValid() {
			confidence = domain.ConfidenceLow
		}
		items = append(items, domain.ConversationItem{
			Position:            offset + i,
			SourceKey:           sourceKey,
			Product:             d.Product,
			TrimType:            d.TrimType,
			RMSpec:              d.RMSpec,
			ProductionType:      d.ProductionType,
			PackagingType:       d.PackagingType,
			PackMaterial:        d.PackMaterial,
			BoxQuantity:         d.BoxQuantity,
			TransportMode:       d.TransportMode,
			RequestedQuantity:   d.Quantity,
			DeliveryRequirement: d.DeliveryRequirement,
			SpecialInstructions: d.SpecialInstructions,
			CustomerReference:   d.CustomerReference,
			ProductDescription:  d.ProductDescription,
			Confidence:          confidence,
		})
	}
	return items
}
