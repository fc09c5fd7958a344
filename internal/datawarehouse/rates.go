package datawarehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/pricing"
	"go.uber.org/zap"
)

// Client serves the pricing engine directly or feeds a snapshot
var (
	_ pricing.Catalog = (*Client)(nil)
	_ pricing.Loader  = (*Client)(nil)
)

func (c *Client) lookupRate(ctx context.Context, query string, args ...interface{}) (float64, bool, error) {
	if !c.IsEnabled() {
		return 0, false, fmt.Errorf("data warehouse client not initialized")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var rate float64
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("rate query failed: %w", err)
	}
	return rate, true, nil
}

func (c *Client) FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error) {
	query := fmt.Sprintf(`SELECT TOP 1 rate_per_kg FROM %s
WHERE product = @p1 AND trim_type = @p2 AND rm_spec = @p3`, c.table("filing_rates"))
	return c.lookupRate(ctx, query, key.Product, key.TrimType, key.RMSpec)
}

func (c *Client) PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	query := fmt.Sprintf(`SELECT TOP 1 rate_per_kg FROM %s
WHERE production_type = @p1 AND product = @p2 AND packaging_type = @p3 AND transport_mode = @p4`, c.table("packaging_rates"))
	return c.lookupRate(ctx, query, key.ProductionType, key.Product, key.PackagingType, key.TransportMode)
}

func (c *Client) ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	query := fmt.Sprintf(`SELECT TOP 1 rate_value FROM %s
WHERE factory_id = @p1 AND charge_kind = @p2 AND production_type = @p3 AND product = @p4 AND method = @p5`, c.table("charge_rates"))
	return c.lookupRate(ctx, query, key.FactoryID, key.ChargeKind, key.ProductionType, key.Product, key.Method)
}

// LoadRates reads all three rate tables
func (c *Client) LoadRates(ctx context.Context) (*pricing.RateSet, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("data warehouse client not initialized")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	set := &pricing.RateSet{}

	err := c.scan(ctx, fmt.Sprintf("SELECT product, trim_type, rm_spec, rate_per_kg FROM %s", c.table("filing_rates")),
		func(rows *sql.Rows) error {
			var r domain.FilingRate
			if err := rows.Scan(&r.Product, &r.TrimType, &r.RMSpec, &r.RatePerKg); err != nil {
				return err
			}
			set.Filing = append(set.Filing, r)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load filing rates: %w", err)
	}

	err = c.scan(ctx, fmt.Sprintf("SELECT production_type, product, packaging_type, transport_mode, box_quantity, rate_per_kg FROM %s", c.table("packaging_rates")),
		func(rows *sql.Rows) error {
			var r domain.PackagingRate
			var box sql.NullString
			if err := rows.Scan(&r.ProductionType, &r.Product, &r.PackagingType, &r.TransportMode, &box, &r.RatePerKg); err != nil {
				return err
			}
			r.BoxQuantity = box.String
			set.Packaging = append(set.Packaging, r)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load packaging rates: %w", err)
	}

	err = c.scan(ctx, fmt.Sprintf("SELECT factory_id, charge_kind, production_type, product, method, rate_value, currency FROM %s", c.table("charge_rates")),
		func(rows *sql.Rows) error {
			var r domain.ChargeRate
			var method, currency sql.NullString
			if err := rows.Scan(&r.FactoryID, &r.ChargeKind, &r.ProductionType, &r.Product, &method, &r.RateValue, &currency); err != nil {
				return err
			}
			r.Method = method.String
			r.Currency = currency.String
			set.Charges = append(set.Charges, r)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load charge rates: %w", err)
	}

	c.logger.Info("Rate catalog loaded from data warehouse",
		zap.Int("filing", len(set.Filing)),
		zap.Int("packaging", len(set.Packaging)),
		zap.Int("charges", len(set.Charges)),
		zap.Duration("duration", time.Since(start)))
	return set, nil
}

func (c *Client) scan(ctx context.Context, query string, row func(*sql.Rows) error) error {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := row(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
