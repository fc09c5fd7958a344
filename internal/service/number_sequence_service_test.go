package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/procost/enquiry-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stoppedClock struct{ t time.Time }

func (c stoppedClock) Now() time.Time { return c.t }

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "QUO-2025-0042", service.FormatNumber("QUO", 2025, 42))
	assert.Equal(t, "ENQ-2024-12345", service.FormatNumber("ENQ", 2024, 12345))
}

func TestNumberSequenceService(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), stoppedClock{t: testNow}, zap.NewNop())
	ctx := context.Background()

	t.Run("numbers increase per prefix", func(t *testing.T) {
		first, err := svc.Next(ctx, service.PrefixQuote)
		require.NoError(t, err)
		second, err := svc.Next(ctx, service.PrefixQuote)
		require.NoError(t, err)
		other, err := svc.Next(ctx, service.PrefixConversation)
		require.NoError(t, err)

		assert.Equal(t, "QUO-2025-0001", first)
		assert.Equal(t, "QUO-2025-0002", second)
		assert.Equal(t, "ENQ-2025-0001", other)
	})

	t.Run("initialize raises the counter", func(t *testing.T) {
		require.NoError(t, svc.Initialize(ctx, service.PrefixQuote, 2025, 500))
		next, err := svc.Next(ctx, service.PrefixQuote)
		require.NoError(t, err)
		assert.Equal(t, "QUO-2025-0501", next)

		current, err := svc.Current(ctx, service.PrefixQuote, 2025)
		require.NoError(t, err)
		assert.Equal(t, 501, current)
	})
}

func TestClockSequencer(t *testing.T) {
	ctx := context.Background()

	t.Run("derives the sequence from the clock", func(t *testing.T) {
		at := time.UnixMilli(1741944601234).UTC()
		seq := service.NewClockSequencer(stoppedClock{t: at})

		number, err := seq.Next(ctx, "QUO")
		require.NoError(t, err)
		assert.Equal(t, service.FormatNumber("QUO", at.Year(), 1234), number)
	})

	t.Run("a stopped clock still yields unique numbers", func(t *testing.T) {
		seq := service.NewClockSequencer(stoppedClock{t: testNow})

		var (
			mu   sync.Mutex
			seen = make(map[string]bool)
			wg   sync.WaitGroup
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := seq.Next(ctx, "ENQ")
				assert.NoError(t, err)
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 50)
	})
}
