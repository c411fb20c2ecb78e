// Package sched runs cancellable deferred callbacks.
//
// Views schedule camera moves and reframes a fixed delay after an event.
// Every scheduled callback is handed out as a [Task] so a newer action can
// cancel an older one before it fires. Callbacks run while holding the
// scheduler's locker, which lets the owner of the view state treat them
// like any other serialized event.
//
// [NewTimer] fires on wall-clock timers. [NewManual] fires only when its
// virtual clock is advanced and is used by tests and headless renders.
package sched

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler defers callbacks.
type Scheduler interface {
	// After runs fn once d has elapsed unless the returned task is
	// cancelled first.
	After(d time.Duration, fn func()) *Task

	// CancelAll cancels every pending task.
	CancelAll()
}

// Task is a handle to a scheduled callback.
type Task struct {
	cancelled atomic.Bool
	done      atomic.Bool
	stop      func()
}

// Cancel prevents the callback from running. It is safe to call on a nil
// task, more than once, or after the callback ran.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	if t.cancelled.Swap(true) {
		return
	}
	if t.stop != nil {
		t.stop()
	}
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool { return t != nil && t.cancelled.Load() }

// Pending reports whether the callback has neither run nor been cancelled.
func (t *Task) Pending() bool { return t != nil && !t.cancelled.Load() && !t.done.Load() }

// claim marks the task done. It returns false if the task was cancelled or
// already ran.
func (t *Task) claim() bool {
	if t.cancelled.Load() {
		return false
	}
	return !t.done.Swap(true)
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

func lockerOrNop(l sync.Locker) sync.Locker {
	if l == nil {
		return nopLocker{}
	}
	return l
}

// =============================================================================
// Timer scheduler
// =============================================================================

// Timer schedules callbacks on runtime timers.
type Timer struct {
	lock sync.Locker

	mu    sync.Mutex
	tasks map[*Task]struct{}
}

// NewTimer returns a wall-clock scheduler whose callbacks run holding l.
// A nil l runs callbacks without locking.
func NewTimer(l sync.Locker) *Timer {
	return &Timer{lock: lockerOrNop(l), tasks: make(map[*Task]struct{})}
}

// After implements [Scheduler].
func (s *Timer) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	s.mu.Lock()
	s.tasks[t] = struct{}{}
	s.mu.Unlock()

	timer := time.AfterFunc(d, func() {
		s.forget(t)
		s.lock.Lock()
		defer s.lock.Unlock()
		// Re-check under the lock: Cancel may have raced with the timer.
		if t.claim() {
			fn()
		}
	})
	t.stop = func() {
		timer.Stop()
		s.forget(t)
	}
	return t
}

// CancelAll implements [Scheduler].
func (s *Timer) CancelAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

// Len returns the number of tasks that have not fired or been cancelled.
func (s *Timer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Timer) forget(t *Task) {
	s.mu.Lock()
	delete(s.tasks, t)
	s.mu.Unlock()
}

// =============================================================================
// Manual scheduler
// =============================================================================

type entry struct {
	task *Task
	due  time.Duration
	seq  int
	fn   func()
}

// Manual is a scheduler driven by a virtual clock.
type Manual struct {
	lock sync.Locker

	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*entry
}

// NewManual returns a scheduler at virtual time zero. Callbacks run holding
// l during Advance or Flush; a nil l runs them without locking.
func NewManual(l sync.Locker) *Manual {
	return &Manual{lock: lockerOrNop(l)}
}

// After implements [Scheduler].
func (m *Manual) After(d time.Duration, fn func()) *Task {
	if d < 0 {
		d = 0
	}
	t := &Task{}
	m.mu.Lock()
	e := &entry{task: t, due: m.now + d, seq: m.seq, fn: fn}
	m.seq++
	m.pending = append(m.pending, e)
	m.mu.Unlock()
	t.stop = func() { m.remove(t) }
	return t
}

// CancelAll implements [Scheduler].
func (m *Manual) CancelAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, e := range pending {
		e.task.cancelled.Store(true)
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Len returns the number of pending tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and runs every task that falls due,
// in due order. Tasks scheduled by callbacks run too if they fall within
// the window. It returns the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	return m.runUntil(target, false)
}

// Flush runs pending tasks until none remain, advancing the clock to each
// due time. It returns the number of callbacks run.
func (m *Manual) Flush() int {
	return m.runUntil(0, true)
}

func (m *Manual) runUntil(target time.Duration, all bool) int {
	ran := 0
	for {
		m.mu.Lock()
		e := m.next()
		if e == nil || (!all && e.due > target) {
			if !all && target > m.now {
				m.now = target
			}
			m.mu.Unlock()
			return ran
		}
		m.pending = m.pending[1:]
		if e.due > m.now {
			m.now = e.due
		}
		m.mu.Unlock()

		m.lock.Lock()
		if e.task.claim() {
			e.fn()
			ran++
		}
		m.lock.Unlock()
	}
}

// next returns the earliest pending entry with m.mu held.
func (m *Manual) next() *entry {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		a, b := m.pending[i], m.pending[j]
		if a.due != b.due {
			return a.due < b.due
		}
		return a.seq < b.seq
	})
	return m.pending[0]
}

func (m *Manual) remove(t *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.pending {
		if e.task == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

var (
	_ Scheduler = (*Timer)(nil)
	_ Scheduler = (*Manual)(nil)
)
