// Package cron provides a periodic scheduler that fires due cron schedules
// by resubmitting their query requests to a synchronizer.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/basket/sqlsync/internal/engine"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Submitter accepts query requests. Satisfied by every engine.Syncer
// instantiation.
type Submitter interface {
	Submit(ctx context.Context, req engine.Request)
}

// Schedule is one recurring query.
type Schedule struct {
	Name    string
	Expr    string // cron expression
	SQL     string
	Args    []any
	Mode    engine.Mode
	Trigger bool
}

// request builds a fresh request for one firing. Each firing gets its own
// request ID.
func (s Schedule) request() engine.Request {
	req := engine.NewQuery(s.SQL, s.Args...)
	switch s.Mode {
	case engine.ModeFullSync:
		req = req.AsFullSync()
	case engine.ModeDelete:
		req = req.AsDelete()
	}
	if s.Trigger {
		req = req.WithTrigger()
	}
	return req
}

// Config holds the dependencies for the scheduler.
type Config struct {
	Target    Submitter
	Schedules []Schedule
	Logger    *slog.Logger
	Interval  time.Duration // tick interval; defaults to 1 second if zero
}

// Scheduler periodically checks which schedules are due and submits their
// requests to the target synchronizer.
type Scheduler struct {
	target   Submitter
	entries  []*entry
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	sched Schedule
	next  time.Time
	cron  cronlib.Schedule
}

// NewScheduler creates a Scheduler, parsing every cron expression up
// front so malformed schedules fail at setup time, not mid-run.
func NewScheduler(cfg Config) (*Scheduler, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 1 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	entries := make([]*entry, 0, len(cfg.Schedules))
	for _, sched := range cfg.Schedules {
		parsed, err := cronParser.Parse(sched.Expr)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: parse %q: %w", sched.Name, sched.Expr, err)
		}
		entries = append(entries, &entry{
			sched: sched,
			cron:  parsed,
			next:  parsed.Next(now),
		})
	}

	return &Scheduler{
		target:   cfg.Target,
		entries:  entries,
		logger:   logger,
		interval: interval,
	}, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("cron scheduler started", "schedules", len(s.entries), "interval", s.interval)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick fires every schedule whose next run time has passed.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		if e.next.After(now) {
			continue
		}
		s.fire(ctx, e, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, e *entry, now time.Time) {
	req := e.sched.request()
	s.target.Submit(ctx, req)
	e.next = e.cron.Next(now)

	s.logger.Info("cron: schedule fired",
		"schedule_name", e.sched.Name,
		"request_id", req.ID,
		"next_run_at", e.next,
	)
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
