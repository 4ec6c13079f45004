package dispatch

import (
	"time"

	"github.com/m68kernel/dispatch/clock"
	"github.com/m68kernel/dispatch/qlist"
	"github.com/m68kernel/dispatch/vcpu"
)

// idleTimeout is the relative deadline an otherwise-idle worker waits
// before it is willing to relinquish. dispatch_worker.c's timed wait uses
// exactly 2 seconds; kept as a named constant per SPEC_FULL.md §4.
const idleTimeout = 2 * time.Second

// workerAdoption records whether a worker acquired a fresh vcpu or
// adopted one that already existed (the caller's own, for the main
// dispatcher singleton). Mirrors dispatch_priv.h's
// _DISPATCH_ACQUIRE_VCPU / _DISPATCH_ADOPT_*_VCPU modes.
type workerAdoption int

const (
	acquireVCPU workerAdoption = iota
	adoptCallerVCPU
)

// Worker owns exactly one vcpu, drains its own FIFO work queue, and
// participates in the dispatcher's shared timer queue and signal fan-out
// (spec.md §3/§4.8's "Worker").
type Worker struct {
	de qlist.DEntry

	workQueue qlist.SList
	workCount int

	currentItem  *Item
	currentTimer *Timer

	vp *vcpu.VCPU
	id uint64

	hotsigs uint64

	owner *Dispatcher

	adoption        workerAdoption
	allowRelinquish bool
	isSuspended     bool
	mayRelinquish   bool
}

// newWorker acquires a fresh vcpu and spawns a worker on it. Called with
// owner.mu held (from acquireWorkerLocked): the vcpu's goroutine runs
// asynchronously and its first step in run is to lock owner.mu, so it
// waits until the caller releases the lock.
func newWorker(owner *Dispatcher) (*Worker, error) {
	w := &Worker{
		owner:           owner,
		adoption:        acquireVCPU,
		hotsigs:         1 << uint(SigDispatchWake),
		allowRelinquish: true,
	}
	w.de.Value = w

	vp, err := vcpu.Acquire(vcpu.AcquireAttr{
		SuspendedOnCreate: true,
		GroupID:           owner.groupID,
		Sched:             vcpu.SchedParams{QoS: owner.attr.QoS, Priority: owner.attr.Priority},
		Func:              func(self *vcpu.VCPU) { w.run() },
	})
	if err != nil {
		return nil, ErrNoMem
	}
	w.vp = vp
	w.id = vp.ID()
	vp.SetSpecific(w)
	vp.Resume()
	return w, nil
}

// adoptWorker wraps the calling goroutine itself as a worker, used only by
// the main-dispatcher singleton (mainqueue.go). Unlike newWorker it does
// not spawn anything; the caller is expected to invoke run() itself.
func adoptWorker(owner *Dispatcher, vp *vcpu.VCPU) *Worker {
	w := &Worker{
		owner:           owner,
		adoption:        adoptCallerVCPU,
		hotsigs:         1 << uint(SigDispatchWake),
		allowRelinquish: false,
		vp:              vp,
		id:              vp.ID(),
	}
	w.de.Value = w
	vp.SetSpecific(w)
	vp.SetSchedParams(vcpu.SchedParams{QoS: owner.attr.QoS, Priority: owner.attr.Priority})
	return w
}

// run is the worker's entire lifetime: acquire the dispatcher mutex, loop
// next-work/execute/retire until told to relinquish, then relinquish.
// Matches dispatch_worker.c's _dispatch_worker_run.
func (w *Worker) run() {
	bindCurrentWorker(w)
	defer unbindCurrentWorker()

	w.owner.mu.Lock()
	for {
		if w.nextWork() {
			break
		}
		w.execute()
		w.retire()
	}
	w.relinquish()
}

// submitLocked enqueues item on this worker's queue and, if wake is true,
// signals the worker's vcpu to wake up and notice it. Called with
// owner.mu held. it.qe.Value must already point to whichever concrete
// type owns the node (*Item for a plain item, *ConvItem/*ConvTimer for a
// cacheable one) — submitLocked only links the node, it never assigns
// Value, since overwriting it here would clobber the richer back-reference
// a conv-item/conv-timer needs at retirement.
func (w *Worker) submitLocked(it *Item, wake bool) {
	it.qe.Unlink()
	it.State = ItemScheduled
	w.workQueue.PushBack(&it.qe)
	w.workCount++
	if wake {
		w.vp.WaitQueue().Raise(SigDispatchWake)
	}
}

func (w *Worker) hasMonitoredSignalsHot() bool {
	return w.hotsigs != 1<<uint(SigDispatchWake)
}

// nextWork implements spec.md §4.8's ten-step selection loop. It returns
// true when the worker should relinquish.
func (w *Worker) nextWork() bool {
	for {
		now := w.owner.clock.Now()

		// 1: a due timer always preempts regular work.
		if t := w.owner.timers.popDue(now); t != nil {
			w.currentItem = &t.Item
			w.currentTimer = t
			w.mayRelinquish = false
			return false
		}

		// 2: own work queue.
		if e := w.workQueue.PopFront(); e != nil {
			w.workCount--
			w.currentItem = itemOf(e)
			w.currentTimer = nil
			w.mayRelinquish = false
			return false
		}

		// 3
		if w.owner.state >= stateTerminating && w.workCount == 0 {
			return true
		}

		// 4
		if w.mayRelinquish {
			return true
		}

		// 5: compute the wait deadline.
		var deadline time.Time
		if t := w.owner.timers.peek(); t != nil {
			deadline = t.Deadline
		} else if w.allowRelinquish {
			deadline = now.Add(idleTimeout)
		} else {
			deadline = clock.Infinite
		}

		// 6
		w.owner.mu.Unlock()
		signo, timedOut := w.vp.WaitQueue().WaitForSignals(w.hotsigs, deadline)
		w.owner.mu.Lock()

		// 7
		if timedOut && w.owner.workerCount() > w.owner.attr.MinConcurrency &&
			w.allowRelinquish && !w.hasMonitoredSignalsHot() {
			w.mayRelinquish = true
		}

		// 8
		if w.owner.state == stateSuspending || w.owner.state == stateSuspended {
			w.waitForResume()
		}

		// 9
		if !timedOut && signo != SigDispatchWake {
			w.owner.submitSignalHandlers(signo, w)
		}

		// 10: loop back to step 1.
	}
}

// waitForResume parks the worker while the dispatcher is suspending or
// suspended, reporting is_suspended so Suspend's caller can observe every
// worker has quiesced.
func (w *Worker) waitForResume() {
	w.isSuspended = true
	w.owner.cond.Broadcast()
	for w.owner.state == stateSuspending || w.owner.state == stateSuspended {
		w.owner.mu.Unlock()
		w.vp.WaitQueue().WaitForSignals(1<<uint(SigDispatchWake), clock.Infinite)
		w.owner.mu.Lock()
	}
	w.isSuspended = false
}

// execute runs the current item's closure without the dispatcher mutex
// held.
func (w *Worker) execute() {
	it := w.currentItem
	it.State = ItemExecuting
	w.owner.mu.Unlock()
	it.Func(it)
	w.owner.mu.Lock()
}

// retire disposes of the just-executed item per spec.md §4.8's retire
// rules: repeating, non-cancelled signal/timer items re-arm instead of
// retiring; everything else lands in cancelled or finished state and then
// goes to the zombie list, back to cache, or through RetireFunc.
func (w *Worker) retire() {
	it := w.currentItem
	timer := w.currentTimer
	repeating := it.Flags&FlagRepeating != 0
	cancelled := it.Flags&FlagCancelled != 0

	if repeating && !cancelled {
		switch it.Type {
		case ItemTypeUserSignal:
			w.owner.sigs.rearmSignalItem(it)
			w.currentItem, w.currentTimer = nil, nil
			return
		case ItemTypeUserTimer, ItemTypeConvTimer:
			w.owner.timers.rearm(timer, w.owner.clock.Now())
			w.currentItem, w.currentTimer = nil, nil
			return
		}
	}

	if cancelled {
		it.State = ItemCancelled
	} else {
		it.State = ItemFinished
	}

	switch {
	case it.Flags&FlagAwaitable != 0:
		it.qe.Unlink()
		w.owner.zombieItems.PushBack(&it.qe)
		w.owner.cond.Broadcast()
	case it.Flags&FlagCacheable != 0:
		switch v := it.qe.Value.(type) {
		case *ConvItem:
			w.owner.cache.releaseConvItem(v)
		case *ConvTimer:
			w.owner.cache.releaseConvTimer(v)
		}
	default:
		if it.RetireFunc != nil {
			it.RetireFunc(it)
		}
	}

	w.currentItem, w.currentTimer = nil, nil
}

// relinquish unlinks the worker from the dispatcher's workers list and, for
// an acquired (non-adopted) vcpu, exits it. Called with owner.mu held; it
// drops the lock itself since RelinquishSelf never returns.
func (w *Worker) relinquish() {
	w.owner.workers.Remove(&w.de)
	w.owner.wcount--
	w.owner.cond.Broadcast()
	w.owner.mu.Unlock()

	if w.adoption == acquireVCPU {
		vcpu.RelinquishSelf()
	}
}

// withdrawItemLocked removes item from this worker's queue if present,
// reporting whether it was found.
func (w *Worker) withdrawItemLocked(item *Item) bool {
	var pred *qlist.SEntry
	cur := w.workQueue.First()
	for cur != nil {
		if cur == &item.qe {
			w.workQueue.Remove(pred, cur)
			w.workCount--
			return true
		}
		pred = cur
		cur = qlist.Next(cur)
	}
	return false
}

// findItemLocked scans this worker's queue for a conv-item whose closure
// targets fn (and arg, unless arg is IgnoreArg), used by Cancel's
// func/arg-matching lookup.
func (w *Worker) findItemLocked(fn any, arg any) *Item {
	for e := w.workQueue.First(); e != nil; e = qlist.Next(e) {
		ci, ok := e.Value.(*ConvItem)
		if !ok {
			continue
		}
		if sameFunc(ci.Fn, fn) && (arg == IgnoreArg || ci.Arg == arg) {
			return &ci.Item
		}
	}
	return nil
}

// drain cancels and retires every item still on this worker's queue,
// called during Terminate(CancelAll).
func (w *Worker) drain() {
	w.workQueue.Drain(func(e *qlist.SEntry) {
		it := itemOf(e)
		it.Flags |= FlagCancelled
		it.State = ItemCancelled
		switch {
		case it.Flags&FlagAwaitable != 0:
			it.qe.Unlink()
			w.owner.zombieItems.PushBack(&it.qe)
		case it.Flags&FlagCacheable != 0:
			switch v := it.qe.Value.(type) {
			case *ConvItem:
				w.owner.cache.releaseConvItem(v)
			case *ConvTimer:
				w.owner.cache.releaseConvTimer(v)
			}
		default:
			if it.RetireFunc != nil {
				it.RetireFunc(it)
			}
		}
	})
	w.workCount = 0
	w.owner.cond.Broadcast()
}
