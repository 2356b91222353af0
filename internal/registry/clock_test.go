package registry

import (
	"testing"
	"time"
)

// fakeClock is an advanceable MockClock for store tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (f *fakeClock) Now() time.Time {
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

func TestNowMs(t *testing.T) {
	clock := MockClock{MockTime: time.UnixMilli(1234)}
	if got := NowMs(clock); got != 1234 {
		t.Errorf("NowMs = %d, want 1234", got)
	}
}
