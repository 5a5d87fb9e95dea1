package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultSweepSchedule = "*/5 * * * *"

type offerExpirer interface {
	ExpireOffers(ctx context.Context) (int, error)
}

// WaitlistSweeper periodically expires unclaimed waitlist offers.
type WaitlistSweeper struct {
	expirer  offerExpirer
	schedule string
	loc      *time.Location
	parser   cron.Parser
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	c       *cron.Cron
	running sync.Mutex
}

// NewWaitlistSweeper validates the cron expression and timezone up front.
func NewWaitlistSweeper(expirer offerExpirer, schedule, timezone string, logger *zap.Logger) (*WaitlistSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load sweep timezone %q: %w", tz, err)
		}
		loc = l
	}
	return &WaitlistSweeper{
		expirer:  expirer,
		schedule: schedule,
		loc:      loc,
		parser:   parser,
		timeout:  time.Minute,
		logger:   logger,
	}, nil
}

// Start registers the sweep and starts the cron runner. Calling Start twice is a no-op.
func (s *WaitlistSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}
	s.c = c
	c.Start()
	s.logger.Info("waitlist sweeper started", zap.String("schedule", s.schedule), zap.String("tz", s.loc.String()))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *WaitlistSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	s.logger.Info("waitlist sweeper stopped")
}

// RunOnce performs a single sweep. Overlapping runs are skipped.
func (s *WaitlistSweeper) RunOnce(ctx context.Context) int {
	if !s.running.TryLock() {
		s.logger.Debug("waitlist sweep already running")
		return 0
	}
	defer s.running.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	expired, err := s.expirer.ExpireOffers(runCtx)
	if err != nil {
		s.logger.Error("waitlist sweep failed", zap.Error(err))
		return expired
	}
	if expired > 0 {
		s.logger.Info("waitlist offers expired", zap.Int("count", expired), zap.Duration("took", time.Since(start)))
	}
	return expired
}
