package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"gorm.io/gorm"
)

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *QuoteRepository) WithTx(tx *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: tx}
}

// CreateWithItems inserts the quote together with its items
func (r *QuoteRepository) CreateWithItems(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Omit("Customer", "Conversation").Create(quote).Error
}

func (r *QuoteRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Conversation").
		Preload("Items", orderedItems)
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	var quote domain.Quote
	if err := r.preloaded(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *QuoteRepository) GetByNumber(ctx context.Context, number string) (*domain.Quote, error) {
	var quote domain.Quote
	if err := r.preloaded(ctx).Where("number = ?", number).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *QuoteRepository) List(ctx context.Context, page, pageSize int) ([]domain.Quote, int64, error) {
	var quotes []domain.Quote
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Quote{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Customer").
		Preload("Conversation").
		Offset(offset).Limit(pageSize).
		Order("created_at DESC").
		Find(&quotes).Error
	return quotes, total, err
}

// ListByConversation returns every quote generated for a conversation
func (r *QuoteRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Quote, error) {
	var quotes []domain.Quote
	err := r.preloaded(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Find(&quotes).Error
	return quotes, err
}

// UpdateStatus persists the status and lifecycle timestamps
func (r *QuoteRepository) UpdateStatus(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Model(&domain.Quote{}).
		Where("id = ?", quote.ID).
		Updates(map[string]interface{}{
			"status":      quote.Status,
			"sent_at":     quote.SentAt,
			"accepted_at": quote.AcceptedAt,
			"rejected_at": quote.RejectedAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}
