package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/conversation"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/procost/enquiry-api/internal/mapper"
	"github.com/procost/enquiry-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultRecentDays is the window of ListRecent when none is given
	DefaultRecentDays = 7
	// statsRecentLimit caps the recent enquiries shown by Stats
	statsRecentLimit = 5
)

// ConversationFilter holds the optional list filters of the API
type ConversationFilter struct {
	Status     string
	CustomerID *uuid.UUID
	Days       int
}

type ConversationService struct {
	db               *gorm.DB
	conversationRepo *repository.ConversationRepository
	eventRepo        *repository.ConversationEventRepository
	customerRepo     *repository.CustomerRepository
	locker           lock.Locker
	clock            Clock
	opts             ConcurrencyOptions
	logger           *zap.Logger
}

func NewConversationService(
	db *gorm.DB,
	conversationRepo *repository.ConversationRepository,
	eventRepo *repository.ConversationEventRepository,
	customerRepo *repository.CustomerRepository,
	locker lock.Locker,
	clock Clock,
	opts ConcurrencyOptions,
	logger *zap.Logger,
) *ConversationService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ConversationService{
		db:               db,
		conversationRepo: conversationRepo,
		eventRepo:        eventRepo,
		customerRepo:     customerRepo,
		locker:           locker,
		clock:            clock,
		opts:             opts.withDefaults(),
		logger:           logger,
	}
}

func (s *ConversationService) List(ctx context.Context, filter ConversationFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = normalizePage(page, pageSize)

	var repoFilter repository.ConversationFilter
	if filter.Status != "" {
		status, ok := domain.ParseConversationStatus(filter.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
		}
		repoFilter.Status = &status
	}
	repoFilter.CustomerID = filter.CustomerID
	if filter.Days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", ErrInvalidInput)
	}
	if filter.Days > 0 {
		since := s.clock.Now().AddDate(0, 0, -filter.Days)
		repoFilter.Since = &since
	}

	conversations, total, err := s.conversationRepo.List(ctx, repoFilter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	dtos := make([]domain.ConversationDTO, 0, len(conversations))
	for i := range conversations {
		dtos = append(dtos, mapper.ToConversationSummaryDTO(&conversations[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// GetByExternalID returns a conversation by its public number
func (s *ConversationService) GetByExternalID(ctx context.Context, externalID string) (*domain.ConversationDTO, error) {
	c, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToConversationDTO(c)
	return &dto, nil
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConversationDTO, error) {
	c, err := s.conversationRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	dto := mapper.ToConversationDTO(c)
	return &dto, nil
}

// ListByStatus parses statusText and returns every conversation with that status
func (s *ConversationService) ListByStatus(ctx context.Context, statusText string) ([]domain.ConversationDTO, error) {
	status, ok := domain.ParseConversationStatus(statusText)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, statusText)
	}
	conversations, err := s.conversationRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return toSummaries(conversations), nil
}

// ListRecent returns conversations received in the last days days
func (s *ConversationService) ListRecent(ctx context.Context, days int) ([]domain.ConversationDTO, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	conversations, err := s.conversationRepo.ListRecent(ctx, since, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return toSummaries(conversations), nil
}

// Stats counts conversations per status and customers, and lists the five
// newest enquiries of the last DefaultRecentDays days
func (s *ConversationService) Stats(ctx context.Context) (*domain.ConversationStatsDTO, error) {
	byStatus, err := s.conversationRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	customers, err := s.customerRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	since := s.clock.Now().AddDate(0, 0, -DefaultRecentDays)
	recent, err := s.conversationRepo.ListRecent(ctx, since, statsRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent conversations: %w", err)
	}

	dto := mapper.ToConversationStatsDTO(byStatus, customers, recent)
	return &dto, nil
}

// UpdateStatus moves a conversation forward by hand. Moving backwards or
// out of a terminal status fails with ErrInvalidTransition.
func (s *ConversationService) UpdateStatus(ctx context.Context, externalID, statusText, note string) (*domain.ConversationDTO, error) {
	target, ok := domain.ParseConversationStatus(statusText)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, statusText)
	}

	c, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}

	release, err := lockThread(ctx, s.locker, s.opts.LockTimeout, c.ThreadKey)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.WithEnquiry(s.logger, c.ExternalID)
	note = strings.TrimSpace(note)
	id := c.ID
	err = retryOnConflict(ctx, s.opts, "conversation "+c.ExternalID, log, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			conversations := s.conversationRepo.WithTx(tx)
			current, err := conversations.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get conversation: %w", err)
			}

			from := current.Status
			if !from.CanTransitionTo(target) {
				return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, target)
			}
			if from == target {
				c = current
				return nil
			}

			now := s.clock.Now()
			current.SetStatus(target)
			text := fmt.Sprintf("%s -> %s", from, target)
			if note != "" {
				text += " (" + note + ")"
			}
			current.History += conversation.HistoryLine(now, "STATUS CHANGED", text)

			if err := conversations.UpdateVersioned(ctx, current); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return errRetry
				}
				return fmt.Errorf("failed to update conversation: %w", err)
			}

			event := &domain.ConversationEvent{
				ConversationID: current.ID,
				MessageKey:     "status_" + uuid.NewString(),
				FromStatus:     &from,
				ToStatus:       target,
				Note:           joinNotes("manual status change", note),
				OccurredAt:     now,
			}
			if err := s.eventRepo.WithTx(tx).Create(ctx, event); err != nil {
				return fmt.Errorf("failed to record conversation event: %w", err)
			}
			c = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info("Conversation status updated", zap.String("status", string(c.Status)))

	dto := mapper.ToConversationDTO(c)
	return &dto, nil
}

// History returns the recorded events of a conversation, oldest first
func (s *ConversationService) History(ctx context.Context, externalID string) ([]domain.ConversationEventDTO, error) {
	c, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.GetByConversationID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	dtos := make([]domain.ConversationEventDTO, 0, len(events))
	for i := range events {
		dtos = append(dtos, mapper.ToConversationEventDTO(&events[i]))
	}
	return dtos, nil
}

// find accepts the public number or the internal UUID
func (s *ConversationService) find(ctx context.Context, ref string) (*domain.Conversation, error) {
	return findConversation(ctx, s.conversationRepo, ref)
}

func findConversation(ctx context.Context, repo *repository.ConversationRepository, ref string) (*domain.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	}

	var (
		c   *domain.Conversation
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		c, err = repo.GetByID(ctx, id)
	} else {
		c, err = repo.GetByExternalID(ctx, ref)
	}
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

func toSummaries(conversations []domain.Conversation) []domain.ConversationDTO {
	dtos := make([]domain.ConversationDTO, 0, len(conversations))
	for i := range conversations {
		dtos = append(dtos, mapper.ToConversationSummaryDTO(&conversations[i]))
	}
	return dtos
}
