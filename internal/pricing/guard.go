package pricing

import (
	"context"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardSettings configures the circuit breaker around a Catalog
type GuardSettings struct {
	Name string
	// ConsecutiveFailures opens the circuit
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again
	OpenTimeout time.Duration
}

// GuardedCatalog fails fast once its source keeps erroring. Absent rates
// are not failures.
type GuardedCatalog struct {
	inner Catalog
	cb    *gobreaker.CircuitBreaker
}

type rateAnswer struct {
	rate  float64
	found bool
}

// Guard wraps catalog in a circuit breaker
func Guard(catalog Catalog, settings GuardSettings, logger *zap.Logger) *GuardedCatalog {
	if settings.Name == "" {
		settings.Name = "rate-catalog"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &GuardedCatalog{
		inner: catalog,
		cb:    gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// State returns the breaker state
func (g *GuardedCatalog) State() gobreaker.State {
	return g.cb.State()
}

func (g *GuardedCatalog) execute(fn func() (float64, bool, error)) (float64, bool, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		rate, found, err := fn()
		if err != nil {
			return nil, err
		}
		return rateAnswer{rate: rate, found: found}, nil
	})
	if err != nil {
		return 0, false, err
	}
	a := res.(rateAnswer)
	return a.rate, a.found, nil
}

func (g *GuardedCatalog) FilingRate(ctx context.Context, key domain.FilingRateKey) (float64, bool, error) {
	return g.execute(func() (float64, bool, error) { return g.inner.FilingRate(ctx, key) })
}

func (g *GuardedCatalog) PackagingRate(ctx context.Context, key domain.PackagingRateKey) (float64, bool, error) {
	return g.execute(func() (float64, bool, error) { return g.inner.PackagingRate(ctx, key) })
}

func (g *GuardedCatalog) ChargeRate(ctx context.Context, key domain.ChargeRateKey) (float64, bool, error) {
	return g.execute(func() (float64, bool, error) { return g.inner.ChargeRate(ctx, key) })
}
