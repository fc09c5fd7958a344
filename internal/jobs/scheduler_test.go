package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/jobs"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

type loaderFunc func(ctx context.Context) (*pricing.RateSet, error)

func (f loaderFunc) LoadRates(ctx context.Context) (*pricing.RateSet, error) { return f(ctx) }

func TestValidateExpr(t *testing.T) {
	assert.NoError(t, jobs.ValidateExpr("0 */15 * * * *"))
	assert.NoError(t, jobs.ValidateExpr("*/15 * * * *"))
	assert.NoError(t, jobs.ValidateExpr("@every 1h"))
	assert.Error(t, jobs.ValidateExpr("every now and then"))
}

func TestScheduler_Registration(t *testing.T) {
	s := jobs.NewScheduler(time.Second, zap.NewNop())

	require.NoError(t, s.Add("@every 1h", &countingJob{name: "b"}))
	require.NoError(t, s.Add("@every 1h", &countingJob{name: "a"}))
	assert.Error(t, s.Add("@every 1h", &countingJob{name: "a"}))
	assert.Error(t, s.Add("bogus", &countingJob{name: "c"}))

	assert.Equal(t, []string{"a", "b"}, s.Names())

	require.NoError(t, s.Remove("a"))
	assert.Error(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, s.Names())
}

func TestScheduler_Runs(t *testing.T) {
	s := jobs.NewScheduler(time.Second, zap.NewNop())
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Add("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

func TestCatalogRefreshJob(t *testing.T) {
	ctx := context.Background()
	fail := false
	snapshot := pricing.NewSnapshotCatalog(loaderFunc(func(context.Context) (*pricing.RateSet, error) {
		if fail {
			return nil, errors.New("warehouse unavailable")
		}
		return &pricing.RateSet{
			Filing: []domain.FilingRate{{Product: "Salmon", TrimType: "Trim C", RMSpec: "2-3kg", RatePerKg: 2}},
		}, nil
	}), zap.NewNop())

	job := jobs.NewCatalogRefreshJob(snapshot, zap.NewNop())
	assert.Equal(t, jobs.CatalogRefreshJobName, job.Name())
	require.NoError(t, job.Run(ctx))

	key := domain.FilingRateKey{Product: "Salmon", TrimType: "Trim C", RMSpec: "2-3kg"}
	rate, ok, err := snapshot.FilingRate(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.0, rate)

	fail = true
	assert.Error(t, job.Run(ctx))

	rate, ok, err = snapshot.FilingRate(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.0, rate)
}
