package camera

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
)

// Given a set of consecutive frame intervals, estimate the average frames per second.
// We use the median interval, so that a single stalled frame doesn't skew the result.
// The value is a float64 because a slow model can run at less than 1 FPS.
func EstimateFPS(frameIntervals []time.Duration) float64 {
	if len(frameIntervals) == 0 {
		return 0
	}
	sorted := slices.Clone(frameIntervals)
	slices.Sort(sorted)
	mid := sorted[len(sorted)/2]
	if mid <= 0 {
		return 0
	}
	fps := float64(time.Second) / float64(mid)
	// One decimal place is all that anybody wants to see
	return math.Round(fps*10) / 10
}

// RateMeter measures the rate of an event, such as frames or classification cycles
type RateMeter struct {
	lock      sync.Mutex
	last      time.Time
	intervals ringbuffer.RingP[time.Duration]
}

// Create a RateMeter that remembers the last 'history' intervals.
// history must be a power of 2.
func NewRateMeter(history int) *RateMeter {
	return &RateMeter{
		intervals: ringbuffer.NewRingP[time.Duration](history),
	}
}

// Record an event
func (r *RateMeter) Tick(now time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.last.IsZero() {
		r.intervals.Add(now.Sub(r.last))
	}
	r.last = now
}

// Events per second
func (r *RateMeter) FPS() float64 {
	r.lock.Lock()
	intervals := make([]time.Duration, r.intervals.Len())
	for i := range intervals {
		intervals[i] = r.intervals.Peek(i)
	}
	r.lock.Unlock()
	return EstimateFPS(intervals)
}
