package pipeline

import (
	"context"
	"log"
	"time"
)

// Frequency is how often scheduled runs happen.
type Frequency string

const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Scheduler triggers pipeline runs at a fixed local time of day. A
// failed run is logged and the schedule keeps going.
type Scheduler struct {
	frequency Frequency
	hour      int
	minute    int
	run       func(context.Context) error
	now       func() time.Time
	timer     func(d time.Duration) <-chan time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler that calls run at the given time of
// day.
func NewScheduler(frequency Frequency, hour, minute int, run func(context.Context) error, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		frequency: frequency,
		hour:      hour,
		minute:    minute,
		run:       run,
		now:       time.Now,
		timer:     func(d time.Duration) <-chan time.Time { return time.After(d) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun returns the first trigger time strictly after now: today's
// HH:MM if that is still ahead, otherwise tomorrow's.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// interval is the gap between consecutive runs after the first.
func (s *Scheduler) interval(after time.Time) time.Time {
	if s.frequency == Weekly {
		return after.AddDate(0, 0, 7)
	}
	return after.AddDate(0, 0, 1)
}

// Start blocks, triggering runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	next := s.NextRun(s.now())
	log.Printf("[scheduler] %s at %02d:%02d, first run %s", s.frequency, s.hour, s.minute, next.Format(time.RFC1123))

	for {
		wait := next.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.timer(wait):
		}

		if err := s.run(ctx); err != nil {
			log.Printf("[scheduler] run failed: %v", err)
		}

		next = s.interval(next)
		log.Printf("[scheduler] next run %s", next.Format(time.RFC1123))
	}
}
