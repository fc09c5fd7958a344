package pricing_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/pricing"
)

// stubCatalog delegates to inner with injectable failures
type stubCatalog struct {
	inner       pricing.Catalog
	filingErr   error
	filingDelay time.Duration
	calls       atomic.Int32
}

func (s *stubCatalog) FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error) {
	s.calls.Add(1)
	if s.filingDelay > 0 {
		select {
		case <-time.After(s.filingDelay):
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	if s.filingErr != nil {
		return 0, false, s.filingErr
	}
	return s.inner.FilingRate(ctx, key)
}

func (s *stubCatalog) PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	return s.inner.PackagingRate(ctx, key)
}

func (s *stubCatalog) ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	return s.inner.ChargeRate(ctx, key)
}

type stubLoader struct {
	set *pricing.RateSet
	err error
}

func (l *stubLoader) LoadRates(context.Context) (*pricing.RateSet, error) {
	return l.set, l.err
}
