package dispatch

import (
	"time"

	"github.com/m68kernel/dispatch/qlist"
	"github.com/m68kernel/dispatch/vcpu"
)

// Submit admits a user-owned work item. Requires item.Func to be set.
// awaitable marks the item so Await can later join it.
func (d *Dispatcher) Submit(item *Item, awaitable bool) error {
	if item.Func == nil {
		return ErrInval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	item.Type = ItemTypeUser
	item.qe.Value = item
	if awaitable {
		item.Flags |= FlagAwaitable
	} else {
		item.Flags &^= FlagAwaitable
	}
	return d.submitLocked(item)
}

// submitLocked is the load-balanced admission routine from spec.md §4.9:
// pick the least-loaded worker (or the sole one), spawn a new worker first
// if that worker is over threshold and there's room, then enqueue. A
// failed expansion is not fatal as long as an existing worker can still
// take the item; it is only fatal when there are no workers at all.
func (d *Dispatcher) submitLocked(item *Item) error {
	w := d.pickWorkerLocked()

	if w == nil || (w.workCount > d.attr.RebalanceThreshold && d.wcount < d.attr.MaxConcurrency) {
		if err := d.acquireWorkerLocked(); err != nil {
			if w == nil {
				return err
			}
		} else {
			w = d.lastWorkerLocked()
		}
	}

	w.submitLocked(item, true)
	return nil
}

// pickWorkerLocked returns the worker with the smallest work_count, or the
// sole worker directly when there is exactly one (avoiding the scan).
// Returns nil if there are no workers.
func (d *Dispatcher) pickWorkerLocked() *Worker {
	if d.wcount == 0 {
		return nil
	}
	if d.wcount == 1 {
		return d.workers.First().Value.(*Worker)
	}
	var best *Worker
	d.workers.Each(func(e *qlist.DEntry) {
		w := e.Value.(*Worker)
		if best == nil || w.workCount < best.workCount {
			best = w
		}
	})
	return best
}

func (d *Dispatcher) lastWorkerLocked() *Worker {
	var last *Worker
	d.workers.Each(func(e *qlist.DEntry) { last = e.Value.(*Worker) })
	return last
}

// Await blocks until item's state reaches finished or cancelled, then
// removes it from the zombie list.
func (d *Dispatcher) Await(item *Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for item.State != ItemFinished && item.State != ItemCancelled {
		d.cond.Wait(&d.mu)
	}
	d.removeZombieLocked(item)
	return nil
}

func (d *Dispatcher) removeZombieLocked(item *Item) {
	var pred *qlist.SEntry
	cur := d.zombieItems.First()
	for cur != nil {
		if cur == &item.qe {
			d.zombieItems.Remove(pred, cur)
			return
		}
		pred = cur
		cur = qlist.Next(cur)
	}
}

// Async submits fn for fire-and-forget execution on a cacheable conv-item.
func (d *Dispatcher) Async(fn func(arg any), arg any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	ci := d.cache.acquireConvItem()
	ci.Type = ItemTypeConv
	ci.Flags = FlagCacheable
	ci.Fn = fn
	ci.Arg = arg
	ci.Func = func(it *Item) {
		owner := it.qe.Value.(*ConvItem)
		owner.Fn.(func(arg any))(owner.Arg)
	}
	if err := d.submitLocked(&ci.Item); err != nil {
		d.cache.releaseConvItem(ci)
		return err
	}
	return nil
}

// Sync submits fn, waits for it to run, and returns its result.
func (d *Dispatcher) Sync(fn func(arg any) int, arg any) (int, error) {
	d.mu.Lock()
	if d.state >= stateTerminating {
		d.mu.Unlock()
		return 0, ErrTerminated
	}
	ci := d.cache.acquireConvItem()
	ci.Type = ItemTypeConv
	ci.Flags = FlagCacheable | FlagAwaitable
	ci.Fn = fn
	ci.Arg = arg
	ci.Func = func(it *Item) {
		owner := it.qe.Value.(*ConvItem)
		owner.Result = owner.Fn.(func(arg any) int)(owner.Arg)
	}
	if err := d.submitLocked(&ci.Item); err != nil {
		d.cache.releaseConvItem(ci)
		d.mu.Unlock()
		return 0, err
	}
	d.mu.Unlock()

	if err := d.Await(&ci.Item); err != nil {
		return 0, err
	}

	d.mu.Lock()
	result := ci.Result
	d.cache.releaseConvItem(ci)
	d.mu.Unlock()
	return result, nil
}

// Timer arms a user-owned, already-populated timer. t.Deadline must
// already be an absolute time; t.Interval is Forever for a one-shot.
func (d *Dispatcher) Timer(t *Timer) error {
	if t.Func == nil {
		return ErrInval
	}
	if t.State == ItemScheduled || t.State == ItemExecuting {
		return ErrBusy
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	t.Type = ItemTypeUserTimer
	t.Flags = 0
	if t.Interval < Forever {
		t.Flags |= FlagRepeating
	}
	t.qe.Value = t
	return d.armLocked(t)
}

// armLocked ensures at least one worker exists, then arms t and wakes
// every worker (a coarse broadcast: only one will win the race to pop it).
func (d *Dispatcher) armLocked(t *Timer) error {
	if d.wcount == 0 {
		if err := d.acquireWorkerLocked(); err != nil {
			return err
		}
	}
	d.timers.arm(t)
	d.wakeAllWorkersLocked()
	return nil
}

// After schedules fn to run once at deadline.
func (d *Dispatcher) After(deadline time.Time, fn func(arg any), arg any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	ct := d.cache.acquireConvTimer()
	ct.Flags = FlagCacheable
	ct.Type = ItemTypeConvTimer
	ct.Fn = fn
	ct.Arg = arg
	ct.Deadline = deadline
	ct.Interval = Forever
	ct.Func = func(it *Item) {
		owner := it.qe.Value.(*ConvTimer)
		owner.Fn(owner.Arg)
	}
	if err := d.armLocked(&ct.Timer); err != nil {
		d.cache.releaseConvTimer(ct)
		return err
	}
	return nil
}

// Repeating schedules fn to run first at deadline, then every interval.
func (d *Dispatcher) Repeating(deadline time.Time, interval time.Duration, fn func(arg any), arg any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	ct := d.cache.acquireConvTimer()
	ct.Flags = FlagCacheable | FlagRepeating
	ct.Type = ItemTypeConvTimer
	ct.Fn = fn
	ct.Arg = arg
	ct.Deadline = deadline
	ct.Interval = interval
	ct.Func = func(it *Item) {
		owner := it.qe.Value.(*ConvTimer)
		owner.Fn(owner.Arg)
	}
	if err := d.armLocked(&ct.Timer); err != nil {
		d.cache.releaseConvTimer(ct)
		return err
	}
	return nil
}

// SignalMonitor registers item as a repeating handler for signo.
func (d *Dispatcher) SignalMonitor(signo int, item *Item) error {
	if signo < SigMin || signo > SigMax {
		return ErrInval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= stateTerminating {
		return ErrTerminated
	}
	if d.sigs.signalMonitor(signo, item) {
		d.setSignalHot(signo, true)
	}
	if d.wcount == 0 {
		return d.acquireWorkerLocked()
	}
	return nil
}

// AllocSignal reserves a free signal number: the lowest-priority one
// available if signo == 0, or the exact number given.
func (d *Dispatcher) AllocSignal(signo int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sigs.allocSignal(signo)
}

// FreeSignal releases a previously allocated signal number.
func (d *Dispatcher) FreeSignal(signo int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sigs.freeSignal(signo)
}

// SendSignal delivers signo to the dispatcher's workers: directly to the
// sole worker when MaxConcurrency == 1, otherwise at vcpu-group scope so
// whichever worker wakes first can fan it out via submitSignalHandlers.
func (d *Dispatcher) SendSignal(signo int) error {
	if signo < SigMin || signo > SigMax {
		return ErrInval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attr.MaxConcurrency == 1 && d.wcount > 0 {
		d.workers.First().Value.(*Worker).vp.WaitQueue().Raise(signo)
		return nil
	}
	vcpu.SendGroupSignal(d.groupID, signo)
	return nil
}

// CancelItem marks item cancelled and, if it is not currently executing,
// withdraws it from whichever structure holds it and retires it
// immediately as cancelled. An item already executing is left to observe
// FlagCancelled cooperatively and retire normally. Registered signal
// handlers sit in ItemIdle between firings (not ItemScheduled, which only
// describes work queued for its next run) so they are withdrawable in
// either state; a plain item or timer is withdrawable only once scheduled.
func (d *Dispatcher) CancelItem(item *Item) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item.Flags |= FlagCancelled
	switch item.State {
	case ItemScheduled:
	case ItemIdle:
		if item.Type != ItemTypeUserSignal {
			return
		}
	default:
		return
	}
	d.withdrawAndRetireLocked(item)
}

// withdrawAndRetireLocked finds item on whichever structure it currently
// sits on (a worker's queue, the timer queue, or a signal monitor's
// handler list) and retires it as cancelled. No-op if item is not found
// on any of them (e.g. it has already been retired).
func (d *Dispatcher) withdrawAndRetireLocked(item *Item) {
	switch item.Type {
	case ItemTypeUserTimer, ItemTypeConvTimer:
		t := timerOf(&item.qe)
		if d.timers.withdraw(t) {
			d.retireCancelledLocked(item)
		}
	case ItemTypeUserSignal:
		if found, disable := d.sigs.cancelSignalItem(item); found {
			if disable {
				d.setSignalHot(item.Subtype, false)
			}
			d.retireCancelledLocked(item)
		}
	default:
		d.workers.Each(func(e *qlist.DEntry) {
			w := e.Value.(*Worker)
			if w.withdrawItemLocked(item) {
				d.retireCancelledLocked(item)
			}
		})
	}
}

func (d *Dispatcher) retireCancelledLocked(item *Item) {
	item.State = ItemCancelled
	switch {
	case item.Flags&FlagAwaitable != 0:
		item.qe.Unlink()
		d.zombieItems.PushBack(&item.qe)
		d.cond.Broadcast()
	case item.Flags&FlagCacheable != 0:
		switch v := item.qe.Value.(type) {
		case *ConvItem:
			d.cache.releaseConvItem(v)
		case *ConvTimer:
			d.cache.releaseConvTimer(v)
		}
	default:
		if item.RetireFunc != nil {
			item.RetireFunc(item)
		}
	}
}

// Cancel searches the timer queue, then every worker's queue, for a
// conv-item or conv-timer whose stored closure matches fn (and arg, unless
// arg is IgnoreArg), and cancels the first match. Reports whether anything
// was found.
func (d *Dispatcher) Cancel(fn any, arg any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ct := d.timers.findByFunc(fn, arg); ct != nil {
		ct.Flags |= FlagCancelled
		d.withdrawAndRetireLocked(&ct.Item)
		return true
	}

	var found *Item
	d.workers.Each(func(e *qlist.DEntry) {
		if found != nil {
			return
		}
		w := e.Value.(*Worker)
		if it := w.findItemLocked(fn, arg); it != nil {
			found = it
		}
	})
	if found == nil {
		return false
	}
	found.Flags |= FlagCancelled
	d.withdrawAndRetireLocked(found)
	return true
}

// ItemCancelled reports whether item's cancel flag is set.
func (d *Dispatcher) ItemCancelled(item *Item) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return item.IsCancelled()
}
