package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"gorm.io/gorm"
)

// EmailStats aggregates the inbound email table
type EmailStats struct {
	Total     int64
	Orphans   int64
	Processed int64
	ByStage   map[domain.Stage]int64
}

type InboundEmailRepository struct {
	db *gorm.DB
}

func NewInboundEmailRepository(db *gorm.DB) *InboundEmailRepository {
	return &InboundEmailRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *InboundEmailRepository) WithTx(tx *gorm.DB) *InboundEmailRepository {
	return &InboundEmailRepository{db: tx}
}

// Create stores a delivery. A repeated message key fails with a duplicate key error.
func (r *InboundEmailRepository) Create(ctx context.Context, email *domain.InboundEmail) error {
	return r.db.WithContext(ctx).Create(email).Error
}

func (r *InboundEmailRepository) Update(ctx context.Context, email *domain.InboundEmail) error {
	return r.db.WithContext(ctx).Save(email).Error
}

func (r *InboundEmailRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InboundEmail, error) {
	var email domain.InboundEmail
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *InboundEmailRepository) GetByMessageKey(ctx context.Context, messageKey string) (*domain.InboundEmail, error) {
	var email domain.InboundEmail
	err := r.db.WithContext(ctx).Where("message_key = ?", messageKey).First(&email).Error
	if err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *InboundEmailRepository) List(ctx context.Context, page, pageSize int) ([]domain.InboundEmail, int64, error) {
	var emails []domain.InboundEmail
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.InboundEmail{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("received_at DESC").Find(&emails).Error
	return emails, total, err
}

// ListOrphans returns orphaned emails nobody has classified yet
func (r *InboundEmailRepository) ListOrphans(ctx context.Context) ([]domain.InboundEmail, error) {
	var emails []domain.InboundEmail
	err := r.db.WithContext(ctx).
		Where("orphan = ? AND manual_classification IS NULL", true).
		Order("received_at DESC").
		Find(&emails).Error
	return emails, err
}

func (r *InboundEmailRepository) Stats(ctx context.Context) (*EmailStats, error) {
	stats := &EmailStats{ByStage: make(map[domain.Stage]int64)}
	db := r.db.WithContext(ctx)

	if err := db.Model(&domain.InboundEmail{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.InboundEmail{}).Where("orphan = ?", true).Count(&stats.Orphans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.InboundEmail{}).Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Stage domain.Stage
		Count int64
	}
	if err := db.Model(&domain.InboundEmail{}).
		Select("stage, COUNT(*) AS count").
		Group("stage").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStage[row.Stage] = row.Count
	}
	return stats, nil
}
