package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"gorm.io/gorm"
)

type ConversationEventRepository struct {
	db *gorm.DB
}

func NewConversationEventRepository(db *gorm.DB) *ConversationEventRepository {
	return &ConversationEventRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ConversationEventRepository) WithTx(tx *gorm.DB) *ConversationEventRepository {
	return &ConversationEventRepository{db: tx}
}

// Create records an applied email or status change
func (r *ConversationEventRepository) Create(ctx context.Context, event *domain.ConversationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetByConversationID returns the events of a conversation, oldest first
func (r *ConversationEventRepository) GetByConversationID(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationEvent, error) {
	var events []domain.ConversationEvent
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("occurred_at ASC").
		Find(&events).Error
	return events, err
}
