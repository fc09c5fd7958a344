package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"go.uber.org/zap"
)

// ErrSnapshotNotLoaded is returned by lookups before the first Refresh
var ErrSnapshotNotLoaded = errors.New("rate catalog snapshot not loaded")

// Loader reads the complete rate catalog from its source
type Loader interface {
	LoadRates(ctx context.Context) (*RateSet, error)
}

// RateSet is a full copy of the rate catalog
type RateSet struct {
	Filing    []domain.FilingRate
	Packaging []domain.PackagingRate
	Charges   []domain.ChargeRate
}

// SnapshotCatalog serves lookups from an immutable in-memory copy of a
// Loader's rates. Refresh swaps the copy atomically, so a caller holding
// Current sees one consistent catalog for as long as it keeps it.
type SnapshotCatalog struct {
	loader   Loader
	logger   *zap.Logger
	current  atomic.Pointer[MemoryCatalog]
	loadedAt atomic.Pointer[time.Time]
}

// NewSnapshotCatalog creates an empty snapshot; call Refresh to load it
func NewSnapshotCatalog(loader Loader, logger *zap.Logger) *SnapshotCatalog {
	return &SnapshotCatalog{loader: loader, logger: logger}
}

// Refresh reloads the snapshot. On failure the previous snapshot stays.
func (s *SnapshotCatalog) Refresh(ctx context.Context) error {
	set, err := s.loader.LoadRates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rate catalog: %w", err)
	}

	next := NewMemoryCatalogFrom(set.Filing, set.Packaging, set.Charges)
	s.current.Store(next)
	now := time.Now().UTC()
	s.loadedAt.Store(&now)

	filing, packaging, charges := next.Size()
	s.logger.Info("Rate catalog snapshot refreshed",
		zap.Int("filing_rates", filing),
		zap.Int("packaging_rates", packaging),
		zap.Int("charge_rates", charges),
	)
	return nil
}

// Current returns the active snapshot, or nil before the first Refresh
func (s *SnapshotCatalog) Current() *MemoryCatalog {
	return s.current.Load()
}

// LoadedAt returns when the active snapshot was loaded
func (s *SnapshotCatalog) LoadedAt() (time.Time, bool) {
	t := s.loadedAt.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func (s *SnapshotCatalog) FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error) {
	c := s.Current()
	if c == nil {
		return 0, false, ErrSnapshotNotLoaded
	}
	return c.FilingRate(ctx, key)
}

func (s *SnapshotCatalog) PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	c := s.Current()
	if c == nil {
		return 0, false, ErrSnapshotNotLoaded
	}
	return c.PackagingRate(ctx, key)
}

func (s *SnapshotCatalog) ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	c := s.Current()
	if c == nil {
		return 0, false, ErrSnapshotNotLoaded
	}
	return c.ChargeRate(ctx, key)
}

// Pin returns a Catalog fixed to the snapshot active at call time. Pricing
// one quote against a pinned catalog keeps every item on the same rates even
// if a refresh lands mid-quote.
func Pin(catalog Catalog) Catalog {
	if s, ok := catalog.(*SnapshotCatalog); ok {
		if c := s.Current(); c != nil {
			return c
		}
	}
	return catalog
}
