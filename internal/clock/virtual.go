package clock

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a manually advanced Clock for tests.
type Virtual struct {
	mux     sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at      time.Time
	ch      chan time.Time
	fn      func()
	stopped bool
}

func (w *waiter) Stop() bool {
	w.stopped = true
	return true
}

// NewVirtual creates a virtual clock starting at the supplied instant.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mux.Lock()
	defer v.mux.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration) <-chan time.Time {
	v.mux.Lock()
	defer v.mux.Unlock()
	w := &waiter{at: v.now.Add(d), ch: make(chan time.Time, 1)}
	v.waiters = append(v.waiters, w)
	return w.ch
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	v.mux.Lock()
	defer v.mux.Unlock()
	w := &waiter{at: v.now.Add(d), fn: fn}
	v.waiters = append(v.waiters, w)
	return w
}

// Advance moves the clock forward, firing every waiter whose deadline elapsed in order.
func (v *Virtual) Advance(d time.Duration) {
	v.mux.Lock()
	v.now = v.now.Add(d)
	now := v.now
	var due, pending []*waiter
	for _, w := range v.waiters {
		if !w.stopped && !w.at.After(now) {
			due = append(due, w)
			continue
		}
		pending = append(pending, w)
	}
	v.waiters = pending
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	v.mux.Unlock()

	for _, w := range due {
		if w.ch != nil {
			w.ch <- now
		}
		if w.fn != nil {
			w.fn()
		}
	}
}
