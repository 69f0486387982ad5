package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/cloudywindow/internal/store"
)

// ManualScheduler is a store.Scheduler driven by Advance instead of wall time.
//
// Callbacks run synchronously on the goroutine that calls Advance, in due-time
// order. Safe for concurrent use.
type ManualScheduler struct {
	mu        sync.Mutex
	now       time.Duration
	timers    []*ManualTimer
	scheduled int
}

// ManualTimer is a timer created by ManualScheduler.
type ManualTimer struct {
	sched   *ManualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements store.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) store.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &ManualTimer{sched: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	s.scheduled++
	return t
}

// Stop cancels the timer. It reports whether the timer was still pending.
func (t *ManualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d and runs every timer that became due.
// It returns the number of callbacks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	var due []*ManualTimer
	pending := s.timers[:0]
	for _, t := range s.timers {
		switch {
		case t.stopped || t.fired:
		case t.at <= s.now:
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	s.timers = pending
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Pending returns the number of timers that are neither stopped nor fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Scheduled returns how many timers were ever created.
func (s *ManualScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}
