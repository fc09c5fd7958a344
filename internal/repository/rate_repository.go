package repository

import (
	"context"
	"fmt"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/pricing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateRepository serves the rate catalog from the application database.
// It satisfies pricing.Catalog for direct lookups and pricing.Loader for
// snapshot refreshes.
type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error) {
	var rate domain.FilingRate
	err := r.db.WithContext(ctx).
		Where("product = ? AND trim_type = ? AND rm_spec = ?", key.Product, key.TrimType, key.RMSpec).
		First(&rate).Error
	return rateResult(rate.RatePerKg, err)
}

func (r *RateRepository) PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	var rate domain.PackagingRate
	err := r.db.WithContext(ctx).
		Where("production_type = ? AND product = ? AND packaging_type = ? AND transport_mode = ?",
			key.ProductionType, key.Product, key.PackagingType, key.TransportMode).
		First(&rate).Error
	return rateResult(rate.RatePerKg, err)
}

func (r *RateRepository) ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	var rate domain.ChargeRate
	err := r.db.WithContext(ctx).
		Where("factory_id = ? AND charge_kind = ? AND production_type = ? AND product = ? AND method = ?",
			key.FactoryID, key.ChargeKind, key.ProductionType, key.Product, key.Method).
		First(&rate).Error
	return rateResult(rate.RateValue, err)
}

func rateResult(value float64, err error) (float64, bool, error) {
	if IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// LoadRates reads the whole catalog
func (r *RateRepository) LoadRates(ctx context.Context) (*pricing.RateSet, error) {
	set := &pricing.RateSet{}
	db := r.db.WithContext(ctx)
	if err := db.Order("created_at ASC").Find(&set.Filing).Error; err != nil {
		return nil, fmt.Errorf("failed to load filing rates: %w", err)
	}
	if err := db.Order("created_at ASC").Find(&set.Packaging).Error; err != nil {
		return nil, fmt.Errorf("failed to load packaging rates: %w", err)
	}
	if err := db.Order("created_at ASC").Find(&set.Charges).Error; err != nil {
		return nil, fmt.Errorf("failed to load charge rates: %w", err)
	}
	return set, nil
}

// UpsertFilingRates inserts rates, overwriting the value of existing keys
func (r *RateRepository) UpsertFilingRates(ctx context.Context, rates []domain.FilingRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product"}, {Name: "trim_type"}, {Name: "rm_spec"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate_per_kg", "updated_at"}),
	}).Create(&rates).Error
}

// UpsertPackagingRates inserts rates, overwriting the value of existing keys
func (r *RateRepository) UpsertPackagingRates(ctx context.Context, rates []domain.PackagingRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "production_type"}, {Name: "product"}, {Name: "packaging_type"}, {Name: "transport_mode"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"box_quantity", "rate_per_kg", "updated_at"}),
	}).Create(&rates).Error
}

// UpsertChargeRates inserts rates, overwriting the value of existing keys
func (r *RateRepository) UpsertChargeRates(ctx context.Context, rates []domain.ChargeRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "factory_id"}, {Name: "charge_kind"}, {Name: "production_type"}, {Name: "product"}, {Name: "method"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"rate_value", "currency", "updated_at"}),
	}).Create(&rates).Error
}

// Counts returns the number of rows per rate table
func (r *RateRepository) Counts(ctx context.Context) (filing, packaging, charges int64, err error) {
	db := r.db.WithContext(ctx)
	if err = db.Model(&domain.FilingRate{}).Count(&filing).Error; err != nil {
		return
	}
	if err = db.Model(&domain.PackagingRate{}).Count(&packaging).Error; err != nil {
		return
	}
	err = db.Model(&domain.ChargeRate{}).Count(&charges).Error
	return
}
