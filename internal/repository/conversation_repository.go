package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationFilter narrows List results; nil fields are ignored
type ConversationFilter struct {
	Status     *domain.ConversationStatus
	CustomerID *uuid.UUID
	Since      *time.Time
}

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindOpenByThreadKey returns the non-terminal conversation for a thread key.
// With forUpdate the row is locked until the surrounding transaction ends.
func (r *ConversationRepository) FindOpenByThreadKey(ctx context.Context, threadKey string, forUpdate bool) (*domain.Conversation, error) {
	var conversation domain.Conversation
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.
		Preload("Items", orderedItems).
		Where("open_thread_key = ?", threadKey).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateWithItems inserts the conversation and its items in one statement batch
func (r *ConversationRepository) CreateWithItems(ctx context.Context, conversation *domain.Conversation) error {
	return r.db.WithContext(ctx).Omit("Customer").Create(conversation).Error
}

// UpdateVersioned writes the mutable conversation fields only if the stored
// version still matches. On success the version is bumped in place.
func (r *ConversationRepository) UpdateVersioned(ctx context.Context, conversation *domain.Conversation) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ? AND version = ?", conversation.ID, conversation.Version).
		Updates(map[string]interface{}{
			"status":           conversation.Status,
			"open_thread_key":  conversation.OpenThreadKey,
			"last_stage":       conversation.LastStage,
			"history":          conversation.History,
			"processed":        conversation.Processed,
			"processed_at":     conversation.ProcessedAt,
			"processing_notes": conversation.ProcessingNotes,
			"version":          conversation.Version + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	conversation.Version++
	conversation.UpdatedAt = now
	return nil
}

// AppendItems inserts items after the existing ones
func (r *ConversationRepository) AppendItems(ctx context.Context, items []domain.ConversationItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// UpdateItemPricing stores the computed price of an item
func (r *ConversationRepository) UpdateItemPricing(ctx context.Context, item *domain.ConversationItem) error {
	return r.db.WithContext(ctx).Model(&domain.ConversationItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"unit_price":  item.UnitPrice,
			"total_price": item.TotalPrice,
			"currency":    item.Currency,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetByExternalID looks a conversation up by its public number, e.g. ENQ-2025-0001
func (r *ConversationRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", orderedItems).
		Where("external_id = ?", externalID).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) List(ctx context.Context, filter ConversationFilter, page, pageSize int) ([]domain.Conversation, int64, error) {
	var conversations []domain.Conversation
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Conversation{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Since != nil {
		query = query.Where("received_at >= ?", *filter.Since)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Customer").
		Preload("Items", orderedItems).
		Offset(offset).Limit(pageSize).
		Order("received_at DESC").
		Find(&conversations).Error

	return conversations, total, err
}

func (r *ConversationRepository) ListByStatus(ctx context.Context, status domain.ConversationStatus) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("status = ?", status).
		Order("received_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// ListRecent returns conversations received at or after since, newest
// first. A positive limit caps the result.
func (r *ConversationRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	query := r.db.WithContext(ctx).
		Preload("Customer").
		Where("received_at >= ?", since).
		Order("received_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&conversations).Error
	return conversations, err
}

// CountByStatus returns the number of conversations per status. Statuses
// without conversations are absent.
func (r *ConversationRepository) CountByStatus(ctx context.Context) (map[domain.ConversationStatus]int64, error) {
	var rows []struct {
		Status domain.ConversationStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.ConversationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
