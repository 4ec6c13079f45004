// Package vcpu models spec.md's §4.4 virtual-processor primitive: a
// preemptible execution context the dispatcher schedules onto. There is no
// 68k hardware here, so a VCPU is a goroutine; the package exists to give
// the dispatcher the same narrow contract spec.md names (acquire/resume/
// relinquish-self, per-vcpu and group-scoped signal delivery, scheduling
// parameters, a specific-value slot) rather than let it reach for
// goroutines and channels directly, so that component stays swappable and
// its concurrency surface stays auditable in one place.
package vcpu

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/m68kernel/dispatch/syncutil"
)

// QoS is a scheduling class, ascending in priority.
type QoS int

const (
	QoSBackground QoS = iota
	QoSUtility
	QoSInteractive
	QoSRealtime
)

// Priority range: symmetric around zero, with a reserved low band (2
// slots at the top of the range, per spec.md §6/§9) used for bookkeeping
// by this layer and therefore not assignable by callers.
const (
	PriorityLowest  = -127
	PriorityHighest = 125 // 127 minus the 2-slot reserved band
)

// ReservedPriorityBand is the width, in priority units, that this layer
// reserves at the top of the range.
const ReservedPriorityBand = 2

// SchedParams is a vcpu's scheduling parameters.
type SchedParams struct {
	QoS      QoS
	Priority int
}

// GroupID identifies a set of vcpus that share group-scoped signal
// delivery (spec.md's groupid).
type GroupID uint64

var nextGroupID atomic.Uint64

// NewGroupID allocates a fresh, process-unique group id.
func NewGroupID() GroupID {
	return GroupID(nextGroupID.Add(1))
}

// Func is the entry point a vcpu runs once acquired.
type Func func(self *VCPU)

// AcquireAttr configures a new vcpu.
type AcquireAttr struct {
	Func              Func
	StackSize         int // 0 = default; unused by the goroutine backing, kept for fidelity
	GroupID           GroupID
	Sched             SchedParams
	SuspendedOnCreate bool
}

// VCPU is a single virtual-processor execution context.
type VCPU struct {
	id      uint64
	group   GroupID
	sched   atomic.Value // SchedParams
	wq      *syncutil.WaitQueue
	started chan struct{} // closed once Resume has released the goroutine
	once    sync.Once
	attr    AcquireAttr
}

var nextID atomic.Uint64

// Acquire spawns a new vcpu running fn with the given attributes. If
// attr.SuspendedOnCreate is true the goroutine blocks immediately until
// Resume is called; otherwise it starts running right away (Resume is then
// a no-op).
func Acquire(attr AcquireAttr) (*VCPU, error) {
	v := &VCPU{
		id:      nextID.Add(1),
		group:   attr.GroupID,
		wq:      syncutil.NewWaitQueue(),
		started: make(chan struct{}),
		attr:    attr,
	}
	v.sched.Store(attr.Sched)
	register(v)

	go func() {
		defer unregister(v)
		defer v.ClearSpecific()
		if attr.SuspendedOnCreate {
			<-v.started
		}
		attr.Func(v)
	}()
	if !attr.SuspendedOnCreate {
		v.Resume()
	}
	return v, nil
}

// AdoptCaller wraps the calling goroutine itself as a vcpu, instead of
// spawning a new one. Used only for the process's main vcpu, which
// dispatch.RunMainQueue adopts rather than acquires, since it already
// exists before the dispatcher does.
func AdoptCaller(gid GroupID) *VCPU {
	v := &VCPU{
		id:      nextID.Add(1),
		group:   gid,
		wq:      syncutil.NewWaitQueue(),
		started: make(chan struct{}),
	}
	v.Resume()
	register(v)
	return v
}

// Resume starts a vcpu created suspended. It is a no-op if the vcpu was not
// created suspended, or if Resume was already called.
func (v *VCPU) Resume() {
	v.once.Do(func() { close(v.started) })
}

// RelinquishSelf exits the calling vcpu. It must be called by the vcpu's
// own goroutine, and it never returns.
func RelinquishSelf() {
	runtime.Goexit()
}

// ID returns the vcpu's identifier, stable for its lifetime.
func (v *VCPU) ID() uint64 { return v.id }

// GroupID returns the vcpu's group.
func (v *VCPU) GroupID() GroupID { return v.group }

// SetSchedParams updates the vcpu's scheduling parameters.
func (v *VCPU) SetSchedParams(s SchedParams) { v.sched.Store(s) }

// SchedParams returns the vcpu's current scheduling parameters.
func (v *VCPU) SchedParams() SchedParams { return v.sched.Load().(SchedParams) }

// WaitQueue returns the vcpu's own signal-gated wait queue, the target of
// SendSignal and the receiver of WaitForSignals calls made by this vcpu's
// own goroutine.
func (v *VCPU) WaitQueue() *syncutil.WaitQueue { return v.wq }
