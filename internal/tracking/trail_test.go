package tracking

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func TestTrailEvictsOldestWhenFull(t *testing.T) {
	trail := NewTrail(3)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		trail.Push(LocationSample{
			ClientID:   fmt.Sprintf("sample-%d", i),
			Latitude:   float64(i),
			RecordedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	if trail.Len() != 3 {
		t.Fatalf("len = %d, want 3", trail.Len())
	}

	latest, ok := trail.Latest()
	if !ok || latest.ClientID != "sample-4" {
		t.Fatalf("latest = %+v ok=%v, want sample-4", latest, ok)
	}

	snapshot := trail.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snapshot))
	}
	for i, want := range []string{"sample-2", "sample-3", "sample-4"} {
		if snapshot[i].ClientID != want {
			t.Fatalf("snapshot[%d] = %s, want %s", i, snapshot[i].ClientID, want)
		}
	}
}

func TestTrailEmpty(t *testing.T) {
	trail := NewTrail(10)
	if trail.Len() != 0 {
		t.Fatalf("len = %d, want 0", trail.Len())
	}
	if _, ok := trail.Latest(); ok {
		t.Fatal("expected no latest sample")
	}
	if got := trail.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot len = %d, want 0", len(got))
	}
}

func TestHaversineKm(t *testing.T) {
	// One degree of latitude along a meridian is about 111.19 km.
	got := HaversineKm(0, 0, 1, 0)
	if math.Abs(got-111.19) > 0.1 {
		t.Fatalf("distance = %f, want ~111.19", got)
	}

	if got := HaversineKm(30.0444, 31.2357, 30.0444, 31.2357); got != 0 {
		t.Fatalf("distance = %f, want 0", got)
	}
}
