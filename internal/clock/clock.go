// Package clock abstracts time so that reconnect backoff, heartbeat probes and
// idle-close timers can be driven by a virtual clock under test instead of real timers.
package clock

import "time"

// Clock provides the time primitives used by the relay.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer represents a scheduled task that can be cancelled.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time                       { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}
