package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/basket/sqlsync/internal/engine"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []engine.Request
}

func (f *fakeSubmitter) Submit(_ context.Context, req engine.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeSubmitter) all() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Request(nil), f.requests...)
}

func TestNewScheduler_RejectsBadExpression(t *testing.T) {
	_, err := NewScheduler(Config{
		Target:    &fakeSubmitter{},
		Schedules: []Schedule{{Name: "bad", Expr: "not a cron", SQL: "SELECT 1"}},
	})
	if err == nil {
		t.Fatal("NewScheduler accepted a malformed expression")
	}
}

func TestScheduler_FiresDueSchedule(t *testing.T) {
	target := &fakeSubmitter{}
	s, err := NewScheduler(Config{
		Target: target,
		Schedules: []Schedule{{
			Name:    "refresh",
			Expr:    "* * * * *",
			SQL:     "SELECT * FROM foos",
			Mode:    engine.ModeFullSync,
			Trigger: true,
		}},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	// Nothing due yet: next run is in the future.
	s.tick(context.Background(), s.entries[0].next.Add(-time.Second))
	if got := target.all(); len(got) != 0 {
		t.Fatalf("fired %d schedules early", len(got))
	}

	// Jump past the next run time.
	fireAt := s.entries[0].next.Add(time.Second)
	s.tick(context.Background(), fireAt)

	got := target.all()
	if len(got) != 1 {
		t.Fatalf("fired %d schedules, want 1", len(got))
	}
	req := got[0]
	if req.SQL != "SELECT * FROM foos" || req.Mode != engine.ModeFullSync || !req.Trigger {
		t.Fatalf("request = %+v", req)
	}
	if !s.entries[0].next.After(fireAt) {
		t.Fatalf("next run %v not advanced past %v", s.entries[0].next, fireAt)
	}
}

func TestScheduler_EachFiringGetsFreshRequestID(t *testing.T) {
	target := &fakeSubmitter{}
	s, err := NewScheduler(Config{
		Target:    target,
		Schedules: []Schedule{{Name: "poll", Expr: "* * * * *", SQL: "SELECT 1"}},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	first := s.entries[0].next.Add(time.Second)
	s.tick(context.Background(), first)
	second := s.entries[0].next.Add(time.Second)
	s.tick(context.Background(), second)

	got := target.all()
	if len(got) != 2 {
		t.Fatalf("fired %d times, want 2", len(got))
	}
	if got[0].ID == got[1].ID {
		t.Fatal("two firings share a request ID")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	target := &fakeSubmitter{}
	s, err := NewScheduler(Config{
		Target:    target,
		Schedules: []Schedule{{Name: "poll", Expr: "* * * * *", SQL: "SELECT 1"}},
		Interval:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.Start(context.Background())
	s.Stop()
	// Stop must wait for the loop; a second Stop-less exit would leak it.
}

func TestNextRunTime(t *testing.T) {
	after := time.Date(2026, 3, 1, 10, 30, 30, 0, time.UTC)
	next, err := NextRunTime("*/5 * * * *", after)
	if err != nil {
		t.Fatalf("NextRunTime: %v", err)
	}
	want := time.Date(2026, 3, 1, 10, 35, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	if _, err := NextRunTime("bogus", after); err == nil {
		t.Fatal("NextRunTime accepted a malformed expression")
	}
}
