// Package clock provides the monotonic time abstraction the dispatcher
// uses for timer deadlines: a narrow Clock interface swappable for a fake
// in tests, and an Infinite deadline sentinel used as "wait forever."
//
// The interface mirrors github.com/zoobzio/clockz.Clock, which this
// package wraps for its real implementation; dispatch depends on clock
// rather than clockz directly so that the dispatcher's own vocabulary
// (Now, After, Since, WithTimeout) is insulated from upstream signature
// changes.
package clock

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// Infinite is used as an absolute deadline that will not expire, the way
// nsync's NoDeadline does: a time far enough in the future that ordinary
// arithmetic never overflows it.
var Infinite = time.Now().AddDate(100, 0, 0)

// Clock is the monotonic time source the dispatcher schedules against.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after d
	// elapses.
	After(d time.Duration) <-chan time.Time

	// Since returns the elapsed duration since t.
	Since(t time.Time) time.Duration

	// WithTimeout derives a context that is cancelled after d, or when
	// parent is cancelled, whichever comes first.
	WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc)
}

// realClock adapts clockz.RealClock to Clock.
type realClock struct{}

// Real is the production clock, backed by the operating system's
// monotonic clock via clockz.RealClock.
var Real Clock = realClock{}

func (realClock) Now() time.Time                        { return clockz.RealClock.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return clockz.RealClock.After(d) }
func (realClock) Since(t time.Time) time.Duration        { return clockz.RealClock.Since(t) }
func (realClock) WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return clockz.RealClock.WithTimeout(parent, d)
}

// IsInfinite reports whether deadline is the Infinite sentinel (or beyond
// it), the way nsync callers compare against NoDeadline.
func IsInfinite(deadline time.Time) bool {
	return !deadline.Before(Infinite)
}
