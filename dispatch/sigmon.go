package dispatch

import "github.com/m68kernel/dispatch/qlist"

// Signal number range. Values are used directly as bit positions in a
// uint64 mask (syncutil.WaitQueue's mask and each worker's hotsigs), so
// SigMax is bounded well under 64.
const (
	SigMin = 1
	SigMax = 61

	// SigDispatchWake is the private worker-wakeup signal: never
	// allocatable, never deliverable by user code (spec.md §5).
	SigDispatchWake = 62
	// SigKill is reserved for vcpu teardown and likewise never
	// allocatable.
	SigKill = 63
)

// sigMonitor is one signal's registered handler list and count (spec.md
// §4.7's "Signal monitor").
type sigMonitor struct {
	handlers qlist.SList
	count    int
}

// sigTable is the dispatcher's sparse signal-monitor table plus its
// allocation bitset. The monitor map is allocated lazily (on first
// SignalMonitor call) the way the original only calloc's self->sigmons
// once it is first needed.
type sigTable struct {
	mons    map[int]*sigMonitor
	alloced uint64
}

func newSigTable() *sigTable {
	return &sigTable{}
}

func (s *sigTable) monitor(signo int) *sigMonitor {
	if s.mons == nil {
		s.mons = make(map[int]*sigMonitor)
	}
	m := s.mons[signo]
	if m == nil {
		m = &sigMonitor{}
		s.mons[signo] = m
	}
	return m
}

// allocSignal implements alloc_signal: signo == 0 picks the lowest-priority
// (highest-numbered) free signal; otherwise it claims that exact number.
// SigDispatchWake and SigKill are never allocatable.
func (s *sigTable) allocSignal(signo int) (int, error) {
	if signo == 0 {
		for i := SigMax; i >= SigMin; i-- {
			if s.alloced&(1<<uint(i)) == 0 {
				s.alloced |= 1 << uint(i)
				return i, nil
			}
		}
		return 0, ErrBusy
	}
	if signo < SigMin || signo > SigMax {
		return 0, ErrInval
	}
	if s.alloced&(1<<uint(signo)) != 0 {
		return 0, ErrBusy
	}
	s.alloced |= 1 << uint(signo)
	return signo, nil
}

func (s *sigTable) freeSignal(signo int) {
	if signo < SigMin || signo > SigMax {
		return
	}
	s.alloced &^= 1 << uint(signo)
}

// signalMonitor registers item as a repeating handler for signo. Returns
// true only on the transition from 0 to 1 handlers, when every worker's
// hotsigs must gain signo, mirroring _dispatch_signal_monitor's "enable on
// first registration."
func (s *sigTable) signalMonitor(signo int, item *Item) (firstHandler bool) {
	item.Type = ItemTypeUserSignal
	item.Subtype = signo
	item.Flags = FlagRepeating
	item.State = ItemIdle
	item.qe.Unlink()
	item.qe.Value = item

	m := s.monitor(signo)
	m.handlers.PushBack(&item.qe)
	m.count++
	return m.count == 1
}

// cancelSignalItem permanently removes item from its monitor list. Returns
// whether item was actually found there, and (only meaningful when found)
// whether the monitor's handler count dropped to zero as a result (signal
// should be disabled on every worker). The two are reported separately so
// a caller can tell "already removed, do nothing" apart from "removed,
// and it was the last handler."
func (s *sigTable) cancelSignalItem(item *Item) (found, disable bool) {
	m := s.mons[item.Subtype]
	if m == nil {
		return false, false
	}
	var pred *qlist.SEntry
	cur := m.handlers.First()
	for cur != nil {
		if cur == &item.qe {
			m.handlers.Remove(pred, cur)
			m.count--
			return true, m.count == 0
		}
		pred = cur
		cur = qlist.Next(cur)
	}
	return false, false
}

// rearmSignalItem moves a just-fired, non-cancelled handler back onto its
// monitor's list (dispatch_signal.c's _dispatch_rearm_signal_item).
func (s *sigTable) rearmSignalItem(item *Item) {
	item.State = ItemIdle
	item.qe.Unlink()
	s.monitor(item.Subtype).handlers.PushBack(&item.qe)
}

// drainHandlersInto pops every handler registered for signo and passes it
// to fn, used by a worker that woke for signo to transfer all of them onto
// its own work queue in one fan-out (spec.md §4.7).
func (s *sigTable) drainHandlersInto(signo int, fn func(*Item)) {
	m := s.mons[signo]
	if m == nil {
		return
	}
	m.handlers.Drain(func(e *qlist.SEntry) { fn(e.Value.(*Item)) })
}
