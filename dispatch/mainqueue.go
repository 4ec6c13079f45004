package dispatch

import (
	"sync"

	"github.com/m68kernel/dispatch/clock"
	"github.com/m68kernel/dispatch/vcpu"
)

// mainQueue is the process-wide main dispatcher singleton (spec.md §4.10),
// lazily created on first use and permanently bound to whichever vcpu
// first calls RunMainQueue.
var (
	mainQueueOnce sync.Once
	mainQueue     *Dispatcher
	mainWorker    *Worker
	mainVCPU      *vcpu.VCPU
)

// MainQueue returns the process's main dispatcher, creating it on first
// call. Unlike New, it does not spawn any workers of its own; its single
// worker is adopted from whichever goroutine later calls RunMainQueue.
func MainQueue() *Dispatcher {
	mainQueueOnce.Do(func() {
		d := &Dispatcher{
			attr: Attr{
				MinConcurrency:     1,
				MaxConcurrency:     1,
				QoS:                vcpu.QoSInteractive,
				RebalanceThreshold: DefaultRebalanceThreshold,
			},
			clock:   clock.Real,
			groupID: vcpu.NewGroupID(),
			sigs:    newSigTable(),
			name:    "main",
			state:   stateActive,
		}
		d.workers.Init()
		mainQueue = d
	})
	return mainQueue
}

// RunMainQueue adopts the calling goroutine as the main dispatcher's sole
// worker and runs its dispatch loop. It must be called from the process's
// main goroutine, exactly once, and does not return until the main
// dispatcher terminates (normally: never, for the lifetime of the
// process). Calling it more than once, or from a second goroutine, panics.
func RunMainQueue() {
	d := MainQueue()

	d.mu.Lock()
	if mainWorker != nil {
		d.mu.Unlock()
		panic("dispatch: RunMainQueue called more than once")
	}
	mainVCPU = vcpu.AdoptCaller(d.groupID)
	w := adoptWorker(d, mainVCPU)
	mainWorker = w
	d.workers.PushBack(&w.de)
	d.wcount++
	d.mu.Unlock()

	w.run()
}
