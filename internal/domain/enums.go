package domain

import "strings"

// Stage is the funnel position of a single inbound email
type Stage string

const (
	StageInitialEnquiry Stage = "INITIAL_ENQUIRY"
	StageFollowUp       Stage = "FOLLOW_UP"
	StageQuoteSent      Stage = "QUOTE_SENT"
	StageOrderPlacement Stage = "ORDER_PLACEMENT"
	StageOrderConfirmed Stage = "ORDER_CONFIRMED"
	StageEnquiryClosed  Stage = "ENQUIRY_CLOSED"
)

// AllStages lists the stages in funnel order
var AllStages = []Stage{
	StageInitialEnquiry,
	StageFollowUp,
	StageQuoteSent,
	StageOrderPlacement,
	StageOrderConfirmed,
	StageEnquiryClosed,
}

// IsValid checks if the Stage is a valid enum value
func (s Stage) IsValid() bool {
	switch s {
	case StageInitialEnquiry, StageFollowUp, StageQuoteSent,
		StageOrderPlacement, StageOrderConfirmed, StageEnquiryClosed:
		return true
	}
	return false
}

// ParseStage parses caller supplied text, ignoring case and surrounding whitespace
func ParseStage(text string) (Stage, bool) {
	s := Stage(strings.ToUpper(strings.TrimSpace(text)))
	return s, s.IsValid()
}

// ConversationStatus is the persisted, monotonic state of a Conversation
type ConversationStatus string

const (
	ConversationStatusReceived   ConversationStatus = "RECEIVED"
	ConversationStatusProcessing ConversationStatus = "PROCESSING"
	ConversationStatusQuoted     ConversationStatus = "QUOTED"
	ConversationStatusConverted  ConversationStatus = "CONVERTED"
	ConversationStatusCancelled  ConversationStatus = "CANCELLED"
)

// AllConversationStatuses lists the statuses in lifecycle order
var AllConversationStatuses = []ConversationStatus{
	ConversationStatusReceived,
	ConversationStatusProcessing,
	ConversationStatusQuoted,
	ConversationStatusConverted,
	ConversationStatusCancelled,
}

// IsValid checks if the ConversationStatus is a valid enum value
func (s ConversationStatus) IsValid() bool {
	switch s {
	case ConversationStatusReceived, ConversationStatusProcessing, ConversationStatusQuoted,
		ConversationStatusConverted, ConversationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed
func (s ConversationStatus) IsTerminal() bool {
	return s == ConversationStatusConverted || s == ConversationStatusCancelled
}

func (s ConversationStatus) rank() int {
	switch s {
	case ConversationStatusReceived:
		return 0
	case ConversationStatusProcessing:
		return 1
	case ConversationStatusQuoted:
		return 2
	default:
		return 3
	}
}

// CanTransitionTo reports whether moving to next keeps the status monotonic.
// Staying put is always allowed; leaving a terminal status never is.
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// ParseConversationStatus parses caller supplied text
func ParseConversationStatus(text string) (ConversationStatus, bool) {
	s := ConversationStatus(strings.ToUpper(strings.TrimSpace(text)))
	return s, s.IsValid()
}

// QuoteStatus represents the lifecycle of a Quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
)

// IsValid checks if the QuoteStatus is a valid enum value
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected:
		return true
	}
	return false
}

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusRejected},
}

// CanTransitionTo reports whether the quote may move forward to next
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	for _, allowed := range quoteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EmailType is the coarse intent signal of an inbound email
type EmailType string

const (
	EmailTypeEnquiry           EmailType = "ENQUIRY"
	EmailTypeQuoteAcceptance   EmailType = "QUOTE_ACCEPTANCE"
	EmailTypeQuoteRejection    EmailType = "QUOTE_REJECTION"
	EmailTypeOrderConfirmation EmailType = "ORDER_CONFIRMATION"
	EmailTypeGeneral           EmailType = "GENERAL"
)

// ConfidenceLevel is the extraction confidence tier of a line item
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// IsValid checks if the ConfidenceLevel is a valid enum value
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}
