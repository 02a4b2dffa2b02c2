package core

import "time"

// Clock is the time source for frame deadlines.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FrameTime tracks the wall time of the current frame and the delta to the last one.
type FrameTime struct {
	Time  time.Time
	Dt    time.Duration
	Frame uint64
}

// Advance moves the frame forward to now.
func (t *FrameTime) Advance(now time.Time) {
	if !t.Time.IsZero() {
		t.Dt = now.Sub(t.Time)
	}
	t.Time = now
	t.Frame++
}
