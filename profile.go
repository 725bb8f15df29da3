package feather2d

import "time"

// Timings keeps running statistics of a measured duration.
type Timings struct {
	Count         int
	Latest        time.Duration
	MovingAverage time.Duration
	Min           time.Duration
	Max           time.Duration
}

// Add records one sample.
func (t *Timings) Add(d time.Duration) {
	if t.Count == 0 {
		t.MovingAverage = d
		t.Min = d
		t.Max = d
	}

	t.Count++
	t.Latest = d
	t.MovingAverage = (95*t.MovingAverage + 5*d) / 100
	t.Min = min(t.Min, d)
	t.Max = max(t.Max, d)
}

// Profile holds the timings of the phases of Step.
type Profile struct {
	Step       Timings
	Collide    Timings
	Solve      Timings
	SolveTOI   Timings
	Broadphase Timings
}

// measure returns a function that records the time elapsed since the call into t.
func measure(t *Timings) func() {
	start := time.Now()
	return func() {
		t.Add(time.Since(start))
	}
}
