package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtual_After(t *testing.T) {
	aClock := NewVirtual(time.Unix(0, 0))
	ch := aClock.After(time.Minute)

	aClock.Advance(30 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	aClock.Advance(30 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("did not fire at deadline")
	}
}

func TestVirtual_AfterFunc(t *testing.T) {
	aClock := NewVirtual(time.Unix(0, 0))
	fired := 0
	aClock.AfterFunc(time.Minute, func() { fired++ })

	aClock.Advance(2 * time.Minute)
	assert.Equal(t, 1, fired)

	aClock.Advance(2 * time.Minute)
	assert.Equal(t, 1, fired, "a fired waiter never repeats")

	stopped := aClock.AfterFunc(time.Minute, func() { fired++ })
	stopped.Stop()
	aClock.Advance(2 * time.Minute)
	assert.Equal(t, 1, fired, "a stopped timer never fires")
}

func TestVirtual_Now(t *testing.T) {
	start := time.Unix(100, 0)
	aClock := NewVirtual(start)
	assert.Equal(t, start, aClock.Now())
	aClock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), aClock.Now())
}
