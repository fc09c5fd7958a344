// Package extraction turns a free-text email body into product line items.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"go.uber.org/zap"
)

// Extractor extracts requested product lines from an email body
type Extractor interface {
	Extract(ctx context.Context, body string) ([]domain.LineItemDraft, error)
}

// Result is the outcome of a guarded extraction
type Result struct {
	Items []domain.LineItemDraft
	// Degraded is true when the extractor failed or timed out
	Degraded bool
	Note     string
}

// DefaultTimeout bounds a single extraction
const DefaultTimeout = 20 * time.Second

// Guarded runs an Extractor under a timeout and turns any failure into an
// empty, degraded Result. It never returns an error.
type Guarded struct {
	extractor Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGuarded wraps extractor. A non-positive timeout uses DefaultTimeout.
func NewGuarded(extractor Extractor, timeout time.Duration, logger *zap.Logger) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{extractor: extractor, timeout: timeout, logger: logger}
}

// Extract runs the wrapped extractor
func (g *Guarded) Extract(ctx context.Context, body string) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type answer struct {
		items []domain.LineItemDraft
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		items, err := g.extractor.Extract(ctx, body)
		ch <- answer{items: items, err: err}
	}()

	var a answer
	select {
	case a = <-ch:
	case <-ctx.Done():
		a.err = ctx.Err()
	}

	if a.err != nil {
		reason := a.err.Error()
		if errors.Is(a.err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("timed out after %s", g.timeout)
		}
		note := "extraction degraded: " + reason
		g.logger.Warn("Line item extraction degraded", zap.Error(a.err))
		return Result{Degraded: true, Note: note}
	}

	return Result{Items: a.items}
}
