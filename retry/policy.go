// Package retry provides the backoff-delay computation used when
// re-establishing the upstream connection.
package retry

import (
	"math/rand"
	"time"
)

// Policy computes reconnect delays: exponential growth from Base capped at
// Max, plus a bounded random jitter to avoid synchronized reconnection storms.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration

	// Rand is the jitter source; nil uses the shared math/rand source.
	Rand *rand.Rand
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Base:   500 * time.Millisecond,
		Max:    30 * time.Second,
		Jitter: time.Second,
	}
}

// Delay returns the wait before reconnect attempt (0-based).
// For all n, Delay(n) <= Max + Jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max || delay < 0 {
			delay = p.Max
			break
		}
	}
	if delay > p.Max {
		delay = p.Max
	}
	if p.Jitter > 0 {
		if p.Rand != nil {
			delay += time.Duration(p.Rand.Int63n(int64(p.Jitter)))
		} else {
			delay += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
	}
	return delay
}
