package dispatch

import (
	"github.com/m68kernel/dispatch/clock"
	"github.com/m68kernel/dispatch/klog"
	"github.com/m68kernel/dispatch/qlist"
	"github.com/m68kernel/dispatch/syncutil"
	"github.com/m68kernel/dispatch/vcpu"
)

// dispatcherState is the lifecycle state spec.md §3 names; values are
// ordered so "state >= stateTerminating" reads naturally at call sites,
// matching the original's `volatile int state` comparisons.
type dispatcherState int32

const (
	stateActive dispatcherState = iota
	stateSuspending
	stateSuspended
	stateTerminating
	stateTerminated
)

// Dispatcher is the public façade spec.md §4.9 describes: create/destroy,
// submit work/timers/signal handlers, sync/async adapters, cancel, join,
// suspend/resume/terminate, and introspection.
type Dispatcher struct {
	mu   syncutil.Mu
	cond syncutil.CV

	attr    Attr
	clock   clock.Clock
	groupID vcpu.GroupID

	workers qlist.DList
	wcount  int

	zombieItems qlist.SList

	cache  itemCache
	timers timerQueue
	sigs   *sigTable

	state           dispatcherState
	suspensionCount int

	name string
}

// New creates and activates a dispatcher, acquiring attr.MinConcurrency
// workers up front. Matches dispatch.c's _dispatch_init followed by
// MinConcurrency calls to _dispatch_acquire_worker.
func New(opts ...Option) (*Dispatcher, error) {
	return newWithClock(clock.Real, opts...)
}

// newWithClock is New with an injectable clock, used by this package's own
// tests to exercise timer ordering and rearm deterministically (spec.md's
// S3/S4/S7 scenarios) against a clock.FakeClock instead of wall time.
func newWithClock(c clock.Clock, opts ...Option) (*Dispatcher, error) {
	a, err := NewAttr(opts...)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		attr:    a,
		clock:   c,
		groupID: vcpu.NewGroupID(),
		sigs:    newSigTable(),
		name:    a.Name,
		state:   stateActive,
	}
	d.workers.Init()

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < a.MinConcurrency; i++ {
		if err := d.acquireWorkerLocked(); err != nil {
			if i == 0 {
				return nil, err
			}
			klog.Errorf("dispatch: only %d/%d minimum workers acquired: %v", i, a.MinConcurrency, err)
			break
		}
	}
	return d, nil
}

// acquireWorkerLocked spawns one more worker and links it in. Called with
// d.mu held; newWorker's spawned goroutine blocks on d.mu itself until
// this function (and any caller holding the lock across a batch of these)
// releases it, so no ordering race is possible between a worker's first
// loop iteration and its own presence on d.workers.
func (d *Dispatcher) acquireWorkerLocked() error {
	w, err := newWorker(d)
	if err != nil {
		return err
	}
	d.workers.PushBack(&w.de)
	d.wcount++
	return nil
}

func (d *Dispatcher) workerCount() int { return d.wcount }

// Destroy releases dispatcher resources. Permitted only once the
// dispatcher has fully terminated and no zombie items remain (spec.md
// §4.9); otherwise it reports Busy.
func (d *Dispatcher) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateTerminated || !d.zombieItems.IsEmpty() {
		return ErrBusy
	}
	d.timers.drain(func(*Timer) {})
	d.cache.drain()
	d.sigs = newSigTable()
	klog.Infof("dispatch: %q destroyed", d.name)
	return nil
}

// submitSignalHandlers fans every handler registered for signo onto w's
// own work queue (spec.md §4.7's "transfers all handlers... as scheduled
// items"). Called with d.mu held, from the worker that woke for signo.
func (d *Dispatcher) submitSignalHandlers(signo int, w *Worker) {
	d.sigs.drainHandlersInto(signo, func(it *Item) {
		w.submitLocked(it, false)
	})
}

func (d *Dispatcher) setSignalHot(signo int, enable bool) {
	d.workers.Each(func(e *qlist.DEntry) {
		w := e.Value.(*Worker)
		if enable {
			w.hotsigs |= 1 << uint(signo)
		} else {
			w.hotsigs &^= 1 << uint(signo)
		}
	})
}

// ConcurrencyInfo is the snapshot Dispatcher.ConcurrencyInfo returns.
type ConcurrencyInfo struct {
	Min, Max, Current int
}

// ConcurrencyInfo returns {min, max, current = worker_count}.
func (d *Dispatcher) ConcurrencyInfo() ConcurrencyInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ConcurrencyInfo{Min: d.attr.MinConcurrency, Max: d.attr.MaxConcurrency, Current: d.wcount}
}

// SetPriority updates the dispatcher's priority and pushes it to every
// worker's vcpu.
func (d *Dispatcher) SetPriority(p int) error {
	if p < vcpu.PriorityLowest || p > vcpu.PriorityHighest {
		return ErrInval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attr.Priority = p
	d.pushSchedParamsLocked()
	return nil
}

// SetQoS updates the dispatcher's QoS class and pushes it to every
// worker's vcpu.
func (d *Dispatcher) SetQoS(q vcpu.QoS) error {
	if q < vcpu.QoSBackground || q > vcpu.QoSRealtime {
		return ErrInval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attr.QoS = q
	d.pushSchedParamsLocked()
	return nil
}

func (d *Dispatcher) pushSchedParamsLocked() {
	sp := vcpu.SchedParams{QoS: d.attr.QoS, Priority: d.attr.Priority}
	d.workers.Each(func(e *qlist.DEntry) {
		e.Value.(*Worker).vp.SetSchedParams(sp)
	})
}

// Name returns the dispatcher's configured name.
func (d *Dispatcher) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Suspend increments the suspension count; on the 0->1 transition it
// blocks until every worker has reported itself suspended.
func (d *Dispatcher) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	d.suspensionCount++
	if d.suspensionCount > 1 {
		return nil
	}
	d.state = stateSuspending
	// Workers idling in WaitForSignals only re-check state on wake, which
	// would otherwise wait for the next natural signal or idle timeout;
	// nudge them now so they notice the transition promptly.
	d.wakeAllWorkersLocked()
	for !d.allWorkersSuspendedLocked() {
		d.cond.Wait(&d.mu)
	}
	d.state = stateSuspended
	return nil
}

func (d *Dispatcher) allWorkersSuspendedLocked() bool {
	all := true
	d.workers.Each(func(e *qlist.DEntry) {
		if !e.Value.(*Worker).isSuspended {
			all = false
		}
	})
	return all
}

// Resume decrements the suspension count; on reaching zero it reactivates
// the dispatcher and wakes every worker.
func (d *Dispatcher) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	if d.suspensionCount == 0 {
		return nil
	}
	d.suspensionCount--
	if d.suspensionCount > 0 {
		return nil
	}
	d.state = stateActive
	d.wakeAllWorkersLocked()
	return nil
}

func (d *Dispatcher) wakeAllWorkersLocked() {
	d.workers.Each(func(e *qlist.DEntry) {
		e.Value.(*Worker).vp.WaitQueue().Raise(SigDispatchWake)
	})
}

// TerminateFlags controls Terminate's behavior.
type TerminateFlags uint8

const (
	// CancelAll drains and cancels every item queued on a worker instead of
	// letting workers finish their own backlog. Pending timers are
	// cancelled by Terminate whether or not CancelAll is given.
	CancelAll TerminateFlags = 1 << iota
	// AwaitAll makes Terminate block until every worker has relinquished,
	// equivalent to calling AwaitTermination immediately afterward.
	AwaitAll
)

// Terminate moves the dispatcher into the terminating state. It is
// idempotent: a call after the first one ignores CancelAll and only acts
// on AwaitAll, by waiting for termination.
func (d *Dispatcher) Terminate(flags TerminateFlags) error {
	d.mu.Lock()
	if d.state < stateTerminating {
		d.state = stateTerminating
		if flags&CancelAll != 0 {
			d.workers.Each(func(e *qlist.DEntry) { e.Value.(*Worker).drain() })
		}
		d.timers.drain(func(t *Timer) {
			t.Flags |= FlagCancelled
			t.State = ItemCancelled
			if t.Flags&FlagCacheable != 0 {
				if ct, ok := t.qe.Value.(*ConvTimer); ok {
					d.cache.releaseConvTimer(ct)
				}
			}
		})
		d.wakeAllWorkersLocked()
	}
	d.mu.Unlock()

	if flags&AwaitAll != 0 {
		return d.AwaitTermination()
	}
	return nil
}

// AwaitTermination blocks until worker_count reaches zero, then marks the
// dispatcher terminated. Legal only once Terminate has been called
// (state == terminating); calling it before that is spec.md §9's
// "not in terminating state" case, reported as ErrNoSuchThing. Idempotent
// once the dispatcher has actually terminated.
func (d *Dispatcher) AwaitTermination() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateTerminated {
		return nil
	}
	if d.state != stateTerminating {
		return ErrNoSuchThing
	}
	for d.wcount > 0 {
		d.cond.Wait(&d.mu)
	}
	d.state = stateTerminated
	return nil
}
