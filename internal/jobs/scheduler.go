// Package jobs runs background maintenance on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work. It must return when ctx is done.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on cron expressions. Expressions take an
// optional leading seconds field, so both "0 */15 * * * *" and
// "*/15 * * * *" are accepted, as are descriptors such as "@every 1h".
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduler creates a scheduler. Each run gets a context bounded by
// timeout; zero means no bound.
func NewScheduler(timeout time.Duration, logger *zap.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(zap.NewStdLog(logger))
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
		),
		logger:  logger,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateExpr reports whether expr is a schedule the scheduler accepts
func ValidateExpr(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Add registers job under its name
func (s *Scheduler) Add(expr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(expr, func() { s.runOnce(job) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	s.entries[name] = id

	s.logger.Info("Scheduled job added", zap.String("job_name", name), zap.String("cron_expr", expr))
	return nil
}

func (s *Scheduler) runOnce(job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job_name", job.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	s.logger.Info("Scheduled job completed",
		zap.String("job_name", job.Name()),
		zap.Duration("duration", time.Since(start)))
}

// Remove unregisters a job by name
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return nil
}

// Names returns the registered job names, sorted
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting job scheduler", zap.Strings("jobs", s.Names()))
	s.cron.Start()
}

// Stop stops scheduling. The returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping job scheduler")
	return s.cron.Stop()
}
