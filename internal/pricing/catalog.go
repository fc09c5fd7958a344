package pricing

import (
	"context"
	"sync"

	"github.com/procost/enquiry-api/internal/domain"
)

// Catalog looks up rates. A missing rate is reported as found=false with a
// nil error; errors are reserved for an unreachable source.
type Catalog interface {
	FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error)
	PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error)
	ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error)
}

// MemoryCatalog is an in-memory Catalog with exact, case-sensitive keys.
// It is safe for concurrent use.
type MemoryCatalog struct {
	mu        sync.RWMutex
	filing    map[domain.FilingRateKey]float64
	packaging map[domain.PackagingRateKey]float64
	charges   map[domain.ChargeRateKey]float64
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		filing:    make(map[domain.FilingRateKey]float64),
		packaging: make(map[domain.PackagingRateKey]float64),
		charges:   make(map[domain.ChargeRateKey]float64),
	}
}

// NewMemoryCatalogFrom builds a catalog from persisted rate rows. The first
// row wins when keys repeat.
func NewMemoryCatalogFrom(filing []domain.FilingRate, packaging []domain.PackagingRate, charges []domain.ChargeRate) *MemoryCatalog {
	c := NewMemoryCatalog()
	for _, r := range filing {
		key := domain.FilingRateKey{Product: r.Product, TrimType: r.TrimType, RMSpec: r.RMSpec}
		if _, ok := c.filing[key]; !ok {
			c.filing[key] = r.RatePerKg
		}
	}
	for _, r := range packaging {
		key := domain.PackagingRateKey{
			ProductionType: r.ProductionType,
			Product:        r.Product,
			PackagingType:  r.PackagingType,
			TransportMode:  r.TransportMode,
		}
		if _, ok := c.packaging[key]; !ok {
			c.packaging[key] = r.RatePerKg
		}
	}
	for _, r := range charges {
		key := domain.ChargeRateKey{
			FactoryID:      r.FactoryID,
			ChargeKind:     r.ChargeKind,
			ProductionType: r.ProductionType,
			Product:        r.Product,
			Method:         r.Method,
		}
		if _, ok := c.charges[key]; !ok {
			c.charges[key] = r.RateValue
		}
	}
	return c
}

// SetFilingRate stores a filing rate
func (c *MemoryCatalog) SetFilingRate(key domain.FilingRateKey, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filing[key] = rate
}

// SetPackagingRate stores a packaging rate
func (c *MemoryCatalog) SetPackagingRate(key domain.PackagingRateKey, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packaging[key] = rate
}

// SetChargeRate stores a factory charge
func (c *MemoryCatalog) SetChargeRate(key domain.ChargeRateKey, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charges[key] = rate
}

// Size returns the number of filing, packaging and charge entries
func (c *MemoryCatalog) Size() (filing, packaging, charges int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filing), len(c.packaging), len(c.charges)
}

func (c *MemoryCatalog) FilingRate(_ context.Context, key domain.FilingRateKey) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.filing[key]
	return rate, ok, nil
}

func (c *MemoryCatalog) PackagingRate(_ context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.packaging[key]
	return rate, ok, nil
}

func (c *MemoryCatalog) ChargeRate(_ context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.charges[key]
	return rate, ok, nil
}
