package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/mapper"
	"github.com/procost/enquiry-api/internal/repository"
	"go.uber.org/zap"
)

// EmailService exposes stored inbound emails and manual classification
type EmailService struct {
	emailRepo        *repository.InboundEmailRepository
	conversationRepo *repository.ConversationRepository
	ingestion        *IngestionService
	logger           *zap.Logger
}

func NewEmailService(
	emailRepo *repository.InboundEmailRepository,
	conversationRepo *repository.ConversationRepository,
	ingestion *IngestionService,
	logger *zap.Logger,
) *EmailService {
	return &EmailService{
		emailRepo:        emailRepo,
		conversationRepo: conversationRepo,
		ingestion:        ingestion,
		logger:           logger,
	}
}

func (s *EmailService) List(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	emails, total, err := s.emailRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return paginated(s.toDTOs(ctx, emails), total, page, pageSize), nil
}

// ListOrphans returns orphaned emails that still need a manual classification
func (s *EmailService) ListOrphans(ctx context.Context) ([]domain.InboundEmailDTO, error) {
	emails, err := s.emailRepo.ListOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned emails: %w", err)
	}
	return s.toDTOs(ctx, emails), nil
}

// Classify records a manual stage for an email. An orphan classified as an
// initial enquiry is processed again and opens a conversation.
func (s *EmailService) Classify(ctx context.Context, id uuid.UUID, stageText string) (*domain.InboundEmailDTO, error) {
	stage, ok := domain.ParseStage(stageText)
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, stageText)
	}

	email, err := s.emailRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	email.ManualClassification = &stage

	var conversationID string
	if email.Orphan && stage == domain.StageInitialEnquiry {
		c, err := s.ingestion.Reprocess(ctx, email, stage)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conversationID = c.ExternalID
		}
	} else {
		if err := s.emailRepo.Update(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to update email: %w", err)
		}
		conversationID = s.conversationNumber(ctx, email.ConversationID)
	}

	s.logger.Info("Email classified manually",
		zap.String("email_id", email.ID.String()),
		zap.String("stage", string(stage)),
		zap.String("enquiry_id", conversationID))

	dto := mapper.ToInboundEmailDTO(email, conversationID)
	return &dto, nil
}

func (s *EmailService) Stats(ctx context.Context) (*domain.EmailStatsDTO, error) {
	stats, err := s.emailRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get email stats: %w", err)
	}
	dto := mapper.ToEmailStatsDTO(stats.Total, stats.Orphans, stats.Processed, stats.ByStage)
	return &dto, nil
}

func (s *EmailService) toDTOs(ctx context.Context, emails []domain.InboundEmail) []domain.InboundEmailDTO {
	numbers := make(map[uuid.UUID]string)
	dtos := make([]domain.InboundEmailDTO, 0, len(emails))
	for i := range emails {
		var number string
		if id := emails[i].ConversationID; id != nil {
			var ok bool
			if number, ok = numbers[*id]; !ok {
				number = s.conversationNumber(ctx, id)
				numbers[*id] = number
			}
		}
		dtos = append(dtos, mapper.ToInboundEmailDTO(&emails[i], number))
	}
	return dtos
}

func (s *EmailService) conversationNumber(ctx context.Context, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	c, err := s.conversationRepo.GetByID(ctx, *id)
	if err != nil {
		s.logger.Warn("Linked conversation not found", zap.String("conversation_id", id.String()), zap.Error(err))
		return ""
	}
	return c.ExternalID
}
