package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/procost/enquiry-api/internal/repository"
	"go.uber.org/zap"
)

// Number prefixes
const (
	PrefixConversation = "ENQ"
	PrefixQuote        = "QUO"
)

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sequencer hands out unique, formatted numbers per prefix.
// Format: {PREFIX}-{YEAR}-{SEQUENCE}, e.g. QUO-2025-0042
type Sequencer interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// FormatNumber renders a number as PREFIX-YYYY-NNNN
func FormatNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// NumberSequenceService draws numbers from a row-locked counter per
// prefix and year
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	clock  Clock
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(repo *repository.NumberSequenceRepository, clock Clock, logger *zap.Logger) *NumberSequenceService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &NumberSequenceService{repo: repo, clock: clock, logger: logger}
}

// Next increments the counter for prefix in the current year
func (s *NumberSequenceService) Next(ctx context.Context, prefix string) (string, error) {
	year := s.clock.Now().Year()

	seq, err := s.repo.GetNextNumber(ctx, prefix, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("prefix", prefix),
			zap.Int("year", year),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate %s number: %w", prefix, err)
	}

	number := FormatNumber(prefix, year, seq)
	s.logger.Debug("generated number",
		zap.String("number", number),
		zap.Int("sequence", seq))
	return number, nil
}

// Current returns the last issued sequence for prefix/year, 0 if none
func (s *NumberSequenceService) Current(ctx context.Context, prefix string, year int) (int, error) {
	return s.repo.GetCurrentSequence(ctx, prefix, year)
}

// Initialize raises the counter so numbers up to value are never reissued
func (s *NumberSequenceService) Initialize(ctx context.Context, prefix string, year, value int) error {
	return s.repo.SetSequence(ctx, prefix, year, value)
}

// ClockSequencer derives the sequence from the clock's milliseconds modulo
// 10000, bumped when needed so numbers per prefix and year strictly increase
// within one process. It needs no database and is meant for single-replica use.
type ClockSequencer struct {
	clock Clock
	mu    sync.Mutex
	last  map[string]int
}

// NewClockSequencer creates a ClockSequencer
func NewClockSequencer(clock Clock) *ClockSequencer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ClockSequencer{clock: clock, last: make(map[string]int)}
}

func (c *ClockSequencer) Next(ctx context.Context, prefix string) (string, error) {
	now := c.clock.Now()
	year := now.Year()
	seq := int(now.UnixMilli() % 10000)

	c.mu.Lock()
	defer c.mu.Unlock()

	key := fmt.Sprintf("%s-%d", prefix, year)
	if last, ok := c.last[key]; ok && seq <= last {
		seq = last + 1
	}
	c.last[key] = seq
	return FormatNumber(prefix, year, seq), nil
}
