package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/m68kernel/dispatch/vcpu"
)

// TestMainQueueSingleton exercises MainQueue/RunMainQueue together. Both are
// process-wide singletons (mainQueueOnce), so every assertion about them has
// to live in this one test function rather than being split across several.
func TestMainQueueSingleton(t *testing.T) {
	d1 := MainQueue()
	d2 := MainQueue()
	if d1 != d2 {
		t.Fatal("MainQueue should return the same instance on every call")
	}
	if d1.Name() != "main" {
		t.Fatalf("Name() = %q, want %q", d1.Name(), "main")
	}
	if d1.attr.QoS != vcpu.QoSInteractive {
		t.Fatalf("QoS = %v, want QoSInteractive (serial interactive main queue)", d1.attr.QoS)
	}

	runReturned := make(chan struct{})
	go func() {
		RunMainQueue()
		close(runReturned)
	}()

	// Give RunMainQueue a moment to adopt the calling goroutine and link
	// itself in as the sole worker before submitting work.
	deadline := time.After(time.Second)
	for {
		if d1.ConcurrencyInfo().Current == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("RunMainQueue never adopted its worker")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// The adopted vcpu's SchedParams must have been explicitly stored by
	// adoptWorker; if it were left at its atomic.Value zero value, this
	// call would panic on the nil-interface type assertion.
	if got := mainWorker.vp.SchedParams(); got.QoS != vcpu.QoSInteractive {
		t.Fatalf("adopted vcpu SchedParams = %+v, want QoS=QoSInteractive", got)
	}

	var ran atomic.Bool
	it := &Item{Func: func(*Item) { ran.Store(true) }}
	if err := d1.Submit(it, false); err != nil {
		t.Fatalf("Submit on main queue: %v", err)
	}

	ranDeadline := time.After(time.Second)
	for !ran.Load() {
		select {
		case <-ranDeadline:
			t.Fatal("item submitted to main queue never ran")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := d1.Terminate(AwaitAll); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	select {
	case <-runReturned:
	case <-time.After(time.Second):
		t.Fatal("RunMainQueue never returned after the main dispatcher terminated")
	}

	if !panicsOnSecondRun() {
		t.Fatal("a second RunMainQueue call should panic")
	}
}

func panicsOnSecondRun() (panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
		}
	}()
	RunMainQueue()
	return false
}
