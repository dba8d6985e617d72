package tracking

import (
	"sync"
	"time"
)

// LocationSample is one position fix from a driver device.
type LocationSample struct {
	ClientID   string
	Latitude   float64
	Longitude  float64
	AccuracyM  float64
	AltitudeM  *float64
	HeadingDeg *float64
	SpeedMps   *float64
	Source     string
	RecordedAt time.Time
}

// Trail keeps a bounded ring of recent samples for the trail display. It is
// not an audit log; old samples are overwritten once capacity is reached.
type Trail struct {
	mtx      sync.RWMutex
	samples  []LocationSample
	capacity int
	next     int
	full     bool
}

// NewTrail builds a ring holding at most capacity samples.
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = 50
	}
	return &Trail{
		samples:  make([]LocationSample, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest when full.
func (t *Trail) Push(sample LocationSample) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.samples[t.next] = sample
	t.next = (t.next + 1) % t.capacity
	if t.next == 0 {
		t.full = true
	}
}

// Len reports how many samples are currently held.
func (t *Trail) Len() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if t.full {
		return t.capacity
	}
	return t.next
}

// Latest returns the most recent sample, if any.
func (t *Trail) Latest() (LocationSample, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if !t.full && t.next == 0 {
		return LocationSample{}, false
	}
	idx := (t.next - 1 + t.capacity) % t.capacity
	return t.samples[idx], true
}

// Snapshot returns the samples oldest first.
func (t *Trail) Snapshot() []LocationSample {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if !t.full {
		out := make([]LocationSample, t.next)
		copy(out, t.samples[:t.next])
		return out
	}
	out := make([]LocationSample, 0, t.capacity)
	out = append(out, t.samples[t.next:]...)
	out = append(out, t.samples[:t.next]...)
	return out
}
