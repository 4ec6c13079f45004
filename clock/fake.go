package clock

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// FakeClock is a controllable clock for deterministic tests of timer
// ordering and rearm behavior (spec scenarios S3, S4, S7), wrapping
// clockz.NewFakeClock the way zoobzio-pipz's own tests do
// (backoff_test.go, circuitbreaker_test.go, ratelimiter_test.go).
type FakeClock struct {
	fc clockz.FakeClock
}

// NewFake returns a FakeClock set to an arbitrary fixed starting instant.
func NewFake() *FakeClock {
	return &FakeClock{fc: clockz.NewFakeClock()}
}

// Advance moves the fake clock forward by d, firing any timers/tickers
// whose deadline has now passed, and blocks until their callbacks have
// been scheduled.
func (f *FakeClock) Advance(d time.Duration) {
	f.fc.Advance(d)
	f.fc.BlockUntilReady()
}

func (f *FakeClock) Now() time.Time                        { return f.fc.Now() }
func (f *FakeClock) After(d time.Duration) <-chan time.Time { return f.fc.After(d) }
func (f *FakeClock) Since(t time.Time) time.Duration        { return f.fc.Since(t) }
func (f *FakeClock) WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return f.fc.WithTimeout(parent, d)
}
