package extraction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type extractorFunc func(ctx context.Context, body string) ([]domain.LineItemDraft, error)

func (f extractorFunc) Extract(ctx context.Context, body string) ([]domain.LineItemDraft, error) {
	return f(ctx, body)
}

func TestGuarded_PassesItemsThrough(t *testing.T) {
	g := extraction.NewGuarded(extractorFunc(func(context.Context, string) ([]domain.LineItemDraft, error) {
		return []domain.LineItemDraft{{Product: "Cod"}}, nil
	}), time.Second, zap.NewNop())

	res := g.Extract(context.Background(), "cod")
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Note)
	assert.Len(t, res.Items, 1)
}

func TestGuarded_ErrorDegrades(t *testing.T) {
	g := extraction.NewGuarded(extractorFunc(func(context.Context, string) ([]domain.LineItemDraft, error) {
		return nil, errors.New("model unavailable")
	}), time.Second, zap.NewNop())

	res := g.Extract(context.Background(), "cod")
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Items)
	assert.Equal(t, "extraction degraded: model unavailable", res.Note)
}

func TestGuarded_TimeoutDegrades(t *testing.T) {
	g := extraction.NewGuarded(extractorFunc(func(ctx context.Context, _ string) ([]domain.LineItemDraft, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return []domain.LineItemDraft{{Product: "late"}}, nil
	}), 20*time.Millisecond, zap.NewNop())

	res := g.Extract(context.Background(), "cod")
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Items)
	assert.Contains(t, res.Note, "timed out")
}

func TestGuarded_PanicDegrades(t *testing.T) {
	g := extraction.NewGuarded(extractorFunc(func(context.Context, string) ([]domain.LineItemDraft, error) {
		panic("boom")
	}), time.Second, zap.NewNop())

	res := g.Extract(context.Background(), "cod")
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Note, "boom")
}
