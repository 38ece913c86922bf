package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, int32(0), runs.Load(), "no write inside the window")

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) })

	d.Trigger()
	assert.True(t, d.Pending())
	d.Flush()

	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerSingleInFlightWrite(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		runs     int
	)
	release := make(chan struct{})
	first := make(chan struct{}, 1)

	d := NewDebouncer(time.Millisecond, func() {
		mu.Lock()
		inFlight++
		runs++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		n := runs
		mu.Unlock()
		if n == 1 {
			first <- struct{}{}
			<-release
		}
		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	d.Trigger()
	<-first
	// Several requests arrive while the first write is blocked.
	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(3 * time.Millisecond)
	}
	close(release)

	require.Eventually(t, func() bool { return !d.Pending() }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 2, runs, "queued requests collapse into one follow-up write")
}

func TestDebouncerStopIgnoresLaterTriggers(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Millisecond, func() { runs.Add(1) })

	d.Stop()
	d.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	d.Flush()
	assert.Equal(t, int32(1), runs.Load())
}
