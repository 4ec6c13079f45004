package dispatch

import (
	"time"

	"github.com/m68kernel/dispatch/qlist"
)

// Forever is the interval sentinel for a one-shot timer: spec.md §3 calls
// zero-or-more intervals repeating and "infinity" one-shot. Using a
// deliberately huge, never-elapsing duration (rather than a separate
// tagged case) keeps rearm's arithmetic branch-free, the same reasoning
// SPEC_FULL.md §2.1 gives for clock.Infinite.
const Forever = time.Duration(1<<63 - 1)

// Timer is an Item plus an absolute deadline and a re-arm interval
// (spec.md §3's "Timer").
type Timer struct {
	Item
	Deadline time.Time
	Interval time.Duration
}

// newTimer allocates a user-owned Timer with its node's Value set to
// itself.
func newTimer() *Timer {
	t := &Timer{}
	t.qe.Value = t
	return t
}

// ConvTimer is the cacheable timer variant dispatch_after/dispatch_repeating
// build internally, wrapping a plain func/arg pair instead of requiring the
// caller to build an Item by hand.
type ConvTimer struct {
	Timer
	Fn  func(arg any)
	Arg any
}

func newConvTimer() *ConvTimer {
	ct := &ConvTimer{}
	ct.qe.Value = ct
	return ct
}

// reset restores a Timer to its post-acquire shape.
func (t *Timer) reset() {
	t.Item.reset()
	t.Deadline = time.Time{}
	t.Interval = 0
}

// reset restores a ConvTimer to its post-acquire shape.
func (ct *ConvTimer) reset() {
	ct.Timer.reset()
	ct.Fn = nil
	ct.Arg = nil
}

// timerQueue is the dispatcher's single, shared, deadline-sorted queue of
// armed timers (spec.md §4.6). It is always accessed under the
// dispatcher's mutex.
type timerQueue struct {
	list qlist.SList
}

// arm inserts t into the queue at its sorted position (ties FIFO) and
// marks it scheduled and un-cancelled; waking workers is left to the
// caller. Matches dispatch_timer.c's _dispatch_arm_timer exactly, minus
// the worker-acquisition step (the caller, submit.go's armLocked, handles
// that, since it needs the dispatcher reference this type intentionally
// does not hold).
func (q *timerQueue) arm(t *Timer) {
	t.qe.Unlink()
	t.State = ItemScheduled
	t.Flags &^= FlagCancelled

	var pred *qlist.SEntry
	cur := q.list.First()
	for cur != nil {
		ct := cur.Value.(timerLike)
		if ct.deadline().After(t.Deadline) {
			break
		}
		pred = cur
		cur = qlist.Next(cur)
	}
	if pred == nil {
		q.insertFront(t)
	} else {
		q.insertAfter(pred, t)
	}
}

// timerLike lets the queue compare both plain *Timer and *ConvTimer nodes
// without a type switch at every comparison.
type timerLike interface{ deadline() time.Time }

func (t *Timer) deadline() time.Time { return t.Deadline }

func (q *timerQueue) insertFront(t *Timer) {
	old := q.list
	q.list = qlist.SList{}
	q.list.PushBack(&t.qe)
	old.Drain(func(e *qlist.SEntry) { q.list.PushBack(e) })
}

func (q *timerQueue) insertAfter(pred *qlist.SEntry, t *Timer) {
	// SList has no native InsertAfter; rebuild is O(n) but arm() is not a
	// hot path relative to worker dispatch, and n is the live timer count.
	var rebuilt qlist.SList
	q.list.Drain(func(e *qlist.SEntry) {
		rebuilt.PushBack(e)
		if e == pred {
			rebuilt.PushBack(&t.qe)
		}
	})
	q.list = rebuilt
}

// peek returns the soonest-deadline timer without removing it, or nil.
func (q *timerQueue) peek() *Timer {
	e := q.list.First()
	if e == nil {
		return nil
	}
	return timerOf(e)
}

// popDue pops and returns the soonest timer if its deadline has passed,
// else nil.
func (q *timerQueue) popDue(now time.Time) *Timer {
	t := q.peek()
	if t == nil || t.Deadline.After(now) {
		return nil
	}
	q.list.PopFront()
	t.qe.Unlink()
	return t
}

// withdraw removes t from the queue via a predecessor-tracked scan and
// returns whether it was found.
func (q *timerQueue) withdraw(t *Timer) bool {
	var pred *qlist.SEntry
	cur := q.list.First()
	for cur != nil {
		if cur == &t.qe {
			q.list.Remove(pred, cur)
			return true
		}
		pred = cur
		cur = qlist.Next(cur)
	}
	return false
}

// drain empties the queue, invoking fn for every timer in FIFO order.
func (q *timerQueue) drain(fn func(*Timer)) {
	q.list.Drain(func(e *qlist.SEntry) { fn(timerOf(e)) })
}

// findByFunc locates a ConvTimer whose adapter targets fn, the mechanism
// dispatch_cancel uses to cancel a dispatch_after/dispatch_repeating call
// by the original user func/arg rather than by the dispatcher's internal
// adapter closure.
func (q *timerQueue) findByFunc(fn any, arg any) *ConvTimer {
	for e := q.list.First(); e != nil; e = qlist.Next(e) {
		ct, ok := e.Value.(*ConvTimer)
		if !ok {
			continue
		}
		if sameFunc(ct.Fn, fn) && (arg == IgnoreArg || ct.Arg == arg) {
			return ct
		}
	}
	return nil
}

func timerOf(e *qlist.SEntry) *Timer {
	switch v := e.Value.(type) {
	case *Timer:
		return v
	case *ConvTimer:
		return &v.Timer
	default:
		panic("dispatch: timer queue node with unexpected value type")
	}
}

// rearm advances a repeating timer's deadline by its interval, skipping
// missed fires (never spinning on a zero interval), then re-arms it.
// Matches dispatch_timer.c's _dispatch_rearm_timer.
func (q *timerQueue) rearm(t *Timer, now time.Time) {
	t.State = ItemIdle
	t.qe.Unlink()
	for {
		t.Deadline = t.Deadline.Add(t.Interval)
		if !(!t.Deadline.After(now) && t.Interval > 0) {
			break
		}
	}
	q.arm(t)
}
