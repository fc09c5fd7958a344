// Package pricing composes a unit price from independent rate lookups.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"go.uber.org/zap"
)

// Component kinds, in evaluation order
const (
	KindProcessing = "Processing"
	KindPackaging  = "Packaging"
	KindFreezing   = "Freezing"
	KindFilleting  = "Filleting"
	KindPallet     = "Pallet"
	KindTerminal   = "Terminal"
	KindHandling   = "Handling"
)

// Charge kinds as stored in the rate catalog
const (
	ChargeFreezing  = "Freezing Rate"
	ChargeFilleting = "Filleting Rate"
	ChargePallet    = "Pallet Charge"
	ChargeTerminal  = "Terminal Charge"
	ChargeHandling  = "Skagerrak Handling"
)

// Freezing methods
const (
	MethodGyroFreezing   = "Gyro Freezing"
	MethodTunnelFreezing = "Tunnel Freezing"
	MethodFillet         = "Fillet"
)

// DefaultFactoryID is the factory used when a caller does not name one
const DefaultFactoryID int64 = 1

// DefaultLookupTimeout bounds each catalog lookup
const DefaultLookupTimeout = 2 * time.Second

// Component is one priced contribution to the unit price
type Component struct {
	Kind   string
	Amount float64
	// Found is false when the rate was absent or the lookup failed
	Found bool
	// Skipped is true when the component does not apply to the item
	Skipped bool
	Err     error
}

// Result is the priced breakdown of one item
type Result struct {
	UnitPrice  float64
	TotalPrice float64
	Quantity   int
	Components []Component
}

// MissingComponents lists applicable components that contributed zero
// because no rate was found
func (r Result) MissingComponents() []string {
	var missing []string
	for _, c := range r.Components {
		if !c.Skipped && !c.Found {
			missing = append(missing, c.Kind)
		}
	}
	return missing
}

// Component returns the component of the given kind
func (r Result) Component(kind string) (Component, bool) {
	for _, c := range r.Components {
		if c.Kind == kind {
			return c, true
		}
	}
	return Component{}, false
}

// Engine prices conversation items against a Catalog
type Engine struct {
	catalog       Catalog
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewEngine creates a pricing engine. A non-positive lookupTimeout uses
// DefaultLookupTimeout.
func NewEngine(catalog Catalog, lookupTimeout time.Duration, logger *zap.Logger) *Engine {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Engine{
		catalog:       catalog,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Price computes the unit and total price of item at factoryID. Price never
// fails: missing rates and lookup errors contribute zero and are recorded
// on the component.
func (e *Engine) Price(ctx context.Context, item domain.ConversationItem, factoryID int64) Result {
	if factoryID <= 0 {
		factoryID = DefaultFactoryID
	}

	components := make([]Component, 0, 7)

	components = append(components, e.lookup(ctx, KindProcessing, func(ctx context.Context) (float64, bool, error) {
		return e.catalog.FilingRate(ctx, domain.FilingRateKey{
			Product:  item.Product,
			TrimType: item.TrimType,
			RMSpec:   item.RMSpec,
		})
	}))

	components = append(components, e.lookup(ctx, KindPackaging, func(ctx context.Context) (float64, bool, error) {
		return e.catalog.PackagingRate(ctx, domain.PackagingRateKey{
			ProductionType: item.ProductionType,
			Product:        item.Product,
			PackagingType:  item.PackagingType,
			TransportMode:  item.TransportMode,
		})
	}))

	if IsFrozen(item.ProductionType) {
		components = append(components, e.charge(ctx, KindFreezing, domain.ChargeRateKey{
			FactoryID:      factoryID,
			ChargeKind:     ChargeFreezing,
			ProductionType: "Frozen",
			Product:        item.Product,
			Method:         FreezingMethod(item.SpecialInstructions),
		}))
	} else {
		components = append(components, Component{Kind: KindFreezing, Skipped: true})
	}

	if IsFilleted(item.TrimType) {
		components = append(components, e.charge(ctx, KindFilleting, domain.ChargeRateKey{
			FactoryID:      factoryID,
			ChargeKind:     ChargeFilleting,
			ProductionType: item.ProductionType,
			Product:        item.Product,
			Method:         MethodFillet,
		}))
	} else {
		components = append(components, Component{Kind: KindFilleting, Skipped: true})
	}

	for _, flat := range []struct{ kind, charge string }{
		{KindPallet, ChargePallet},
		{KindTerminal, ChargeTerminal},
		{KindHandling, ChargeHandling},
	} {
		components = append(components, e.charge(ctx, flat.kind, domain.ChargeRateKey{
			FactoryID:      factoryID,
			ChargeKind:     flat.charge,
			ProductionType: item.ProductionType,
			Product:        item.Product,
		}))
	}

	var unit float64
	for _, c := range components {
		unit += c.Amount
	}
	quantity := item.Quantity()

	result := Result{
		UnitPrice:  unit,
		TotalPrice: unit * float64(quantity),
		Quantity:   quantity,
		Components: components,
	}

	if missing := result.MissingComponents(); len(missing) > 0 {
		e.logger.Debug("Pricing components missing",
			zap.String("product", item.Product),
			zap.Int64("factory_id", factoryID),
			zap.Strings("components", missing),
		)
	}

	return result
}

func (e *Engine) charge(ctx context.Context, kind string, key domain.ChargeRateKey) Component {
	return e.lookup(ctx, kind, func(ctx context.Context) (float64, bool, error) {
		return e.catalog.ChargeRate(ctx, key)
	})
}

func (e *Engine) lookup(ctx context.Context, kind string, fn func(context.Context) (float64, bool, error)) Component {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	type answer struct {
		rate  float64
		found bool
		err   error
	}
	// Buffered so a lookup that ignores ctx can still finish after we stop waiting
	ch := make(chan answer, 1)
	go func() {
		rate, found, err := fn(ctx)
		ch <- answer{rate, found, err}
	}()

	var a answer
	select {
	case a = <-ch:
	case <-ctx.Done():
		a.err = ctx.Err()
	}

	rate, found, err := a.rate, a.found, a.err
	if err != nil {
		e.logger.Warn("Rate lookup failed",
			zap.String("component", kind),
			zap.Error(err),
		)
		return Component{Kind: kind, Err: fmt.Errorf("%s lookup: %w", strings.ToLower(kind), err)}
	}
	if !found {
		return Component{Kind: kind}
	}
	return Component{Kind: kind, Amount: rate, Found: true}
}

// IsFrozen reports whether the freezing charge applies to a production type
func IsFrozen(productionType string) bool {
	return strings.EqualFold(productionType, "frozen")
}

// IsFilleted reports whether the filleting charge applies to a trim type
func IsFilleted(trimType string) bool {
	return strings.Contains(strings.ToLower(trimType), "fillet")
}

// FreezingMethod picks the freezing method named in the special instructions
func FreezingMethod(specialInstructions string) string {
	lower := strings.ToLower(specialInstructions)
	switch {
	case strings.Contains(lower, "gyro"):
		return MethodGyroFreezing
	case strings.Contains(lower, "tunnel"):
		return MethodTunnelFreezing
	default:
		return MethodTunnelFreezing
	}
}

// Pinned returns an engine whose catalog is fixed to the current snapshot,
// for pricing several items against the same rates
func (e *Engine) Pinned() *Engine {
	return &Engine{
		catalog:       Pin(e.catalog),
		lookupTimeout: e.lookupTimeout,
		logger:        e.logger,
	}
}
