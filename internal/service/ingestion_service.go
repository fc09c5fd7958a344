package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/procost/enquiry-api/internal/classifier"
	"github.com/procost/enquiry-api/internal/conversation"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/procost/enquiry-api/internal/htmltext"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/storage"
	"github.com/procost/enquiry-api/internal/threading"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	messageProcessed = "Email received, processed and stored"
	messageDuplicate = "Email already processed"
)

// errReplay means the message key is already recorded
var errReplay = errors.New("message already recorded")

// IngestionService runs inbound emails through normalization, threading,
// classification, extraction and the conversation state machine
type IngestionService struct {
	db            *gorm.DB
	customers     *CustomerService
	conversations *repository.ConversationRepository
	events        *repository.ConversationEventRepository
	emails        *repository.InboundEmailRepository
	extractor     *extraction.Guarded
	locker        lock.Locker
	sequencer     Sequencer
	archive       *storage.EmailArchive
	clock         Clock
	opts          ConcurrencyOptions
	logger        *zap.Logger
}

// NewIngestionService creates the pipeline. archive may be nil to skip
// archiving raw bodies.
func NewIngestionService(
	db *gorm.DB,
	customers *CustomerService,
	conversations *repository.ConversationRepository,
	events *repository.ConversationEventRepository,
	emails *repository.InboundEmailRepository,
	extractor *extraction.Guarded,
	locker lock.Locker,
	sequencer Sequencer,
	archive *storage.EmailArchive,
	clock Clock,
	opts ConcurrencyOptions,
	logger *zap.Logger,
) *IngestionService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &IngestionService{
		db:            db,
		customers:     customers,
		conversations: conversations,
		events:        events,
		emails:        emails,
		extractor:     extractor,
		locker:        locker,
		sequencer:     sequencer,
		archive:       archive,
		clock:         clock,
		opts:          opts.withDefaults(),
		logger:        logger,
	}
}

// prepared holds the slow, side-effect free inputs of an apply. They are
// computed at most once per email and reused across retries.
type prepared struct {
	extracted  bool
	extraction extraction.Result
	externalID string
}

// applied is the committed result of one inbound email
type applied struct {
	outcome    conversation.Outcome
	itemsCount int
	note       string
}

// Ingest processes one webhook delivery. A redelivery of an already
// recorded message returns the original outcome with Duplicate set.
func (s *IngestionService) Ingest(ctx context.Context, req *domain.ReceiveEmailRequest) (*domain.ReceiveEmailResponse, error) {
	fromEmail := strings.ToLower(strings.TrimSpace(req.FromEmail))
	if fromEmail == "" {
		return nil, fmt.Errorf("%w: fromEmail is required", ErrInvalidInput)
	}

	now := s.clock.Now()
	body := htmltext.Normalize(req.EmailBody)
	receivedAt := ParseReceivedAt(req.ReceivedAt, now)
	threadKey := threading.Resolve(threading.Metadata{
		MessageID:        req.MessageID,
		ProviderThreadID: req.ThreadID,
		ConversationID:   req.ConversationID,
		InReplyTo:        req.InReplyTo,
		Subject:          req.Subject,
	})
	messageKey := MessageKey(req.MessageID, fromEmail, req.Subject, body, req.ReceivedAt)
	log := logger.WithThread(s.logger, threadKey, messageKey)

	if resp, err := s.replay(ctx, messageKey); err != nil || resp != nil {
		return resp, err
	}

	stage := classifier.ClassifyStage(req.Subject, body)
	emailType := classifier.ClassifyEmailType(req.Subject, body)
	refs := classifier.ExtractReferences(req.Subject, body)
	recipients := Recipients(req.ToEmail)

	log.Info("Inbound email classified",
		zap.String("from", fromEmail),
		zap.String("stage", string(stage)),
		zap.String("email_type", string(emailType)),
		zap.Int("recipients", len(recipients)),
	)

	customer, err := s.customers.FindOrCreate(ctx, fromEmail, body)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, threadKey)
	if err != nil {
		return nil, err
	}
	defer release()

	// Another delivery of the same message may have finished while we waited
	if resp, err := s.replay(ctx, messageKey); err != nil || resp != nil {
		return resp, err
	}

	email := &domain.InboundEmail{
		MessageKey:      messageKey,
		MessageID:       strings.TrimSpace(req.MessageID),
		ThreadKey:       threadKey,
		FromEmail:       fromEmail,
		ToEmail:         PrimaryRecipient(req.ToEmail),
		Recipients:      strings.Join(recipients, ","),
		Subject:         req.Subject,
		Body:            body,
		ReceivedAt:      receivedAt,
		Stage:           stage,
		EmailType:       emailType,
		QuoteReference:  refs.Quote,
		OrderReference:  refs.Order,
		SuggestedAction: classifier.SuggestedAction(stage),
	}

	if s.archive != nil {
		name, err := s.archive.Archive(ctx, receivedAt, messageKey, req.EmailBody)
		if err != nil {
			log.Warn("Failed to archive raw email body", zap.Error(err))
		} else {
			email.ArchivePath = name
		}
	}

	in := conversation.Inbound{
		ThreadKey:  threadKey,
		MessageKey: messageKey,
		CustomerID: customer.ID,
		Stage:      stage,
		Subject:    req.Subject,
		Body:       body,
		ReceivedAt: receivedAt,
		Now:        now,
	}

	result, err := s.applyWithRetry(ctx, in, email, true, log)
	if errors.Is(err, errReplay) {
		return s.replay(ctx, messageKey)
	}
	if err != nil {
		s.discardArchive(ctx, email.ArchivePath, messageKey, log)
		return nil, err
	}

	resp := &domain.ReceiveEmailResponse{
		Success:         true,
		Message:         messageProcessed,
		Timestamp:       now.UnixMilli(),
		FromEmail:       fromEmail,
		Subject:         req.Subject,
		EmailType:       emailType,
		EmailStage:      stage,
		EmailThreadID:   threadKey,
		MessageID:       req.MessageID,
		ThreadID:        req.ThreadID,
		ConversationID:  req.ConversationID,
		QuoteReference:  refs.Quote,
		OrderReference:  refs.Order,
		CustomerID:      customer.ID,
		CustomerName:    customer.ContactPerson,
		CompanyName:     customer.CompanyName,
		Orphan:          result.outcome.Kind == conversation.KindOrphaned,
		SuggestedAction: email.SuggestedAction,
	}
	if c := result.outcome.Conversation; c != nil {
		resp.EnquiryID = c.ExternalID
		resp.EnquiryStatus = c.Status
		resp.ItemsCount = result.itemsCount
	}

	log.Info("Inbound email applied",
		zap.String("outcome", string(result.outcome.Kind)),
		zap.String("enquiry_id", resp.EnquiryID),
		zap.String("status", string(resp.EnquiryStatus)),
		zap.Int("new_items", len(result.outcome.NewItems)),
	)
	return resp, nil
}

// Reprocess applies a stored email again under a manually chosen stage and
// saves the email with its new link. It returns the resulting conversation,
// or nil when the email is still an orphan.
func (s *IngestionService) Reprocess(ctx context.Context, email *domain.InboundEmail, stage domain.Stage) (*domain.Conversation, error) {
	log := logger.WithThread(s.logger, email.ThreadKey, email.MessageKey)

	customer, err := s.customers.FindOrCreate(ctx, email.FromEmail, email.Body)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, email.ThreadKey)
	if err != nil {
		return nil, err
	}
	defer release()

	in := conversation.Inbound{
		ThreadKey:  email.ThreadKey,
		MessageKey: email.MessageKey,
		CustomerID: customer.ID,
		Stage:      stage,
		Subject:    email.Subject,
		Body:       email.Body,
		ReceivedAt: email.ReceivedAt,
		Now:        s.clock.Now(),
	}

	result, err := s.applyWithRetry(ctx, in, email, false, log)
	if errors.Is(err, errReplay) {
		return nil, fmt.Errorf("%w: email %s was already applied to its conversation", ErrConflict, email.ID)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Stored email reprocessed",
		zap.String("stage", string(stage)),
		zap.String("outcome", string(result.outcome.Kind)),
	)
	return result.outcome.Conversation, nil
}

// discardArchive removes the raw body archived for an email that was not
// stored, unless another delivery of the same message has stored it since
func (s *IngestionService) discardArchive(ctx context.Context, name, messageKey string, log *zap.Logger) {
	if name == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if resp, err := s.replay(ctx, messageKey); err != nil || resp != nil {
		return
	}
	if err := s.archive.Discard(ctx, name); err != nil {
		log.Warn("Failed to discard archived email body", zap.String("archive_path", name), zap.Error(err))
	}
}

func (s *IngestionService) acquire(ctx context.Context, threadKey string) (func(), error) {
	return lockThread(ctx, s.locker, s.opts.LockTimeout, threadKey)
}

// applyWithRetry runs applyOnce until it commits, re-reading state after
// every lost race
func (s *IngestionService) applyWithRetry(ctx context.Context, in conversation.Inbound, email *domain.InboundEmail, isNew bool, log *zap.Logger) (*applied, error) {
	var (
		prep   prepared
		result *applied
	)
	baseNotes := email.Notes

	err := retryOnConflict(ctx, s.opts, "thread "+in.ThreadKey, log, func() error {
		if err := s.prepare(ctx, &prep, in); err != nil {
			return err
		}
		r, err := s.applyOnce(ctx, in, &prep, email, baseNotes, isNew)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepare extracts line items and draws a conversation number when the
// current state says they will be needed
func (s *IngestionService) prepare(ctx context.Context, prep *prepared, in conversation.Inbound) error {
	existing, err := s.conversations.FindOpenByThreadKey(ctx, in.ThreadKey, false)
	if err != nil && !repository.IsNotFound(err) {
		return fmt.Errorf("failed to get conversation: %w", err)
	}
	if err != nil {
		existing = nil
	}

	if !prep.extracted && (existing != nil || in.Stage == domain.StageInitialEnquiry) {
		prep.extraction = s.extractor.Extract(ctx, in.Body)
		prep.extracted = true
	}

	if prep.externalID == "" && existing == nil && in.Stage == domain.StageInitialEnquiry {
		number, err := s.sequencer.Next(ctx, PrefixConversation)
		if err != nil {
			return err
		}
		prep.externalID = number
	}
	return nil
}

func (s *IngestionService) applyOnce(ctx context.Context, in conversation.Inbound, prep *prepared, email *domain.InboundEmail, baseNotes string, isNew bool) (*applied, error) {
	var result applied

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversations := s.conversations.WithTx(tx)

		existing, err := conversations.FindOpenByThreadKey(ctx, in.ThreadKey, true)
		switch {
		case repository.IsNotFound(err):
			existing = nil
		case err != nil:
			return fmt.Errorf("failed to lock conversation: %w", err)
		}

		if existing == nil && in.Stage == domain.StageInitialEnquiry && prep.externalID == "" {
			return errRetry
		}
		if (existing != nil || in.Stage == domain.StageInitialEnquiry) && !prep.extracted {
			return errRetry
		}

		in.Items = prep.extraction.Items
		in.ExtractionNote = prep.extraction.Note
		outcome := conversation.Apply(existing, in)

		switch outcome.Kind {
		case conversation.KindCreated:
			outcome.Conversation.ExternalID = prep.externalID
			if err := conversations.CreateWithItems(ctx, outcome.Conversation); err != nil {
				if repository.IsDuplicateKey(err) {
					// Either the thread was opened concurrently or the number
					// is taken; draw a fresh number on the next attempt
					prep.externalID = ""
					return errRetry
				}
				return fmt.Errorf("failed to create conversation: %w", err)
			}
			result.itemsCount = len(outcome.Conversation.Items)

		case conversation.KindUpdated:
			if err := conversations.UpdateVersioned(ctx, outcome.Conversation); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return errRetry
				}
				return fmt.Errorf("failed to update conversation: %w", err)
			}
			for i := range outcome.NewItems {
				outcome.NewItems[i].ConversationID = outcome.Conversation.ID
			}
			if err := conversations.AppendItems(ctx, outcome.NewItems); err != nil {
				return fmt.Errorf("failed to append conversation items: %w", err)
			}
			result.itemsCount = len(existing.Items) + len(outcome.NewItems)
		}

		result.note = joinNotes(outcome.Note, prep.extraction.Note)

		if c := outcome.Conversation; c != nil {
			stage := in.Stage
			event := &domain.ConversationEvent{
				ConversationID: c.ID,
				MessageKey:     in.MessageKey,
				Stage:          &stage,
				FromStatus:     outcome.FromStatus,
				ToStatus:       outcome.ToStatus,
				Note:           result.note,
				OccurredAt:     in.Now,
			}
			if err := s.events.WithTx(tx).Create(ctx, event); err != nil {
				if repository.IsDuplicateKey(err) {
					return errReplay
				}
				return fmt.Errorf("failed to record conversation event: %w", err)
			}

			id := c.ID
			email.ConversationID = &id
			email.Orphan = false
			email.Processed = true
		} else {
			email.ConversationID = nil
			email.Orphan = true
			email.Processed = false
		}
		email.Notes = joinNotes(baseNotes, result.note)

		emails := s.emails.WithTx(tx)
		if isNew {
			if err := emails.Create(ctx, email); err != nil {
				if repository.IsDuplicateKey(err) {
					return errReplay
				}
				return fmt.Errorf("failed to store inbound email: %w", err)
			}
		} else if err := emails.Update(ctx, email); err != nil {
			return fmt.Errorf("failed to update inbound email: %w", err)
		}

		result.outcome = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// replay rebuilds the response of an already recorded message. It returns
// nil when the message key is new.
func (s *IngestionService) replay(ctx context.Context, messageKey string) (*domain.ReceiveEmailResponse, error) {
	email, err := s.emails.GetByMessageKey(ctx, messageKey)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate email: %w", err)
	}

	resp := &domain.ReceiveEmailResponse{
		Success:         true,
		Duplicate:       true,
		Message:         messageDuplicate,
		Timestamp:       s.clock.Now().UnixMilli(),
		FromEmail:       email.FromEmail,
		Subject:         email.Subject,
		EmailType:       email.EmailType,
		EmailStage:      email.Stage,
		EmailThreadID:   email.ThreadKey,
		MessageID:       email.MessageID,
		QuoteReference:  email.QuoteReference,
		OrderReference:  email.OrderReference,
		Orphan:          email.Orphan,
		SuggestedAction: email.SuggestedAction,
	}

	if customer, err := s.customers.customerRepo.GetByEmail(ctx, email.FromEmail); err == nil {
		resp.CustomerID = customer.ID
		resp.CustomerName = customer.ContactPerson
		resp.CompanyName = customer.CompanyName
	}

	if email.ConversationID != nil {
		c, err := s.conversations.GetByID(ctx, *email.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversation: %w", err)
		}
		resp.EnquiryID = c.ExternalID
		resp.EnquiryStatus = c.Status
		resp.ItemsCount = len(c.Items)
	}

	s.logger.Info("Duplicate inbound email ignored", zap.String("message_key", messageKey))
	return resp, nil
}

// MessageKey identifies a delivery: the message id when the provider sent
// one, otherwise a fingerprint of sender, subject, body and receive time
func MessageKey(messageID, fromEmail, subject, body, receivedAt string) string {
	if id := strings.TrimSpace(messageID); id != "" {
		return id
	}
	return "fp_" + threading.Fingerprint(strings.ToLower(strings.TrimSpace(fromEmail)), subject, body, receivedAt)
}

var receivedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseReceivedAt parses the provider timestamp, falling back to now
func ParseReceivedAt(text string, now time.Time) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return now
	}
	for _, layout := range receivedAtLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return now
}

// Recipients splits a comma-separated recipient list
func Recipients(toEmail string) []string {
	var out []string
	for _, r := range strings.Split(toEmail, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// PrimaryRecipient returns the first recipient, or ""
func PrimaryRecipient(toEmail string) string {
	if all := Recipients(toEmail); len(all) > 0 {
		return all[0]
	}
	return ""
}

func joinNotes(notes ...string) string {
	var parts []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "; ")
}
