package ddns

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MinInterval is the shortest interval a Scheduler will wait between ticks.
const MinInterval = 1 * time.Second

// Ticker runs one reconciliation tick.
type Ticker interface {
	Tick(ctx context.Context, force bool) (Result, error)
}

// Scheduler runs ticks forever at a fixed interval.
//
// The first tick runs immediately.
// The timer for the next tick is armed only after the current tick returns,
// so ticks never overlap even when one takes longer than the interval.
type Scheduler struct {
	ticker   Ticker
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewScheduler constructs a Scheduler. Intervals below MinInterval are raised to it.
// A nil clock means the real clock; a nil logger discards output.
func NewScheduler(t Ticker, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{ticker: t, interval: interval, clock: clock, logger: logger}
}

// Interval returns the effective interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run blocks until ctx is cancelled.
// Tick errors, and panics, are logged and never stop the loop.
// An in-flight tick is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting daemon", zap.Duration("interval", s.interval))
	for {
		s.runTick(ctx)

		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Stopping daemon", zap.NamedError("reason", ctx.Err()))
			return nil
		case <-timer.Chan():
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Tick panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	// force is a single-shot option; the daemon always reconciles against stored state
	if _, err := s.ticker.Tick(ctx, false); err != nil {
		s.logger.Error("Tick failed", zap.Error(err))
	}
}

// RunDaemon runs client on a Scheduler with the real clock until ctx is cancelled.
func RunDaemon(ctx context.Context, client Ticker, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		if c, ok := client.(*Client); ok && c.logger != nil {
			logger = c.logger
		}
	}
	return NewScheduler(client, interval, nil, logger).Run(ctx)
}
