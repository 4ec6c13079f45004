package dispatch

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		d.Terminate(CancelAll | AwaitAll)
		d.Destroy()
	})
	return d
}

func TestNewActivatesMinWorkers(t *testing.T) {
	d := newTestDispatcher(t, WithConcurrency(3, 5))
	info := d.ConcurrencyInfo()
	if info.Current != 3 {
		t.Fatalf("Current = %d, want 3", info.Current)
	}
	if info.Min != 3 || info.Max != 5 {
		t.Fatalf("ConcurrencyInfo = %+v", info)
	}
}

func TestSubmitRunsItem(t *testing.T) {
	d := newTestDispatcher(t)
	ran := make(chan struct{})
	it := &Item{Func: func(*Item) { close(ran) }}
	if err := d.Submit(it, true); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("item never ran")
	}
	if err := d.Await(it); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if it.State != ItemFinished {
		t.Fatalf("State = %v, want ItemFinished", it.State)
	}
}

func TestAsyncRunsFn(t *testing.T) {
	d := newTestDispatcher(t)
	var got atomic.Value
	done := make(chan struct{})
	if err := d.Async(func(arg any) {
		got.Store(arg)
		close(done)
	}, "payload"); err != nil {
		t.Fatalf("Async: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async fn never ran")
	}
	if got.Load() != "payload" {
		t.Fatalf("arg = %v, want %q", got.Load(), "payload")
	}
}

func TestSyncReturnsResult(t *testing.T) {
	d := newTestDispatcher(t)
	result, err := d.Sync(func(arg any) int {
		return arg.(int) * 2
	}, 21)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %d, want 42", result)
	}
}

func TestSubmitRejectedAfterTerminate(t *testing.T) {
	d := newTestDispatcher(t)
	d.Terminate(0)
	it := &Item{Func: func(*Item) {}}
	if err := d.Submit(it, false); err != ErrTerminated {
		t.Fatalf("Submit after terminate = %v, want ErrTerminated", err)
	}
}

func TestSubmitRequiresFunc(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.Submit(&Item{}, false); err != ErrInval {
		t.Fatalf("Submit with nil Func = %v, want ErrInval", err)
	}
}

// TestLoadBalancedSubmitSpawnsExtraWorker occupies the sole worker with a
// blocked item, then queues enough backlog on it to exceed
// RebalanceThreshold, and checks that submission spawns a second worker to
// absorb the excess rather than piling everything onto the busy one.
func TestLoadBalancedSubmitSpawnsExtraWorker(t *testing.T) {
	d := newTestDispatcher(t, WithConcurrency(1, 4), WithRebalanceThreshold(1))

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &Item{Func: func(*Item) {
		close(started)
		<-release
	}}
	if err := d.Submit(blocker, false); err != nil {
		t.Fatalf("submit blocker: %v", err)
	}
	<-started

	noop := func(*Item) {}
	for i := 0; i < 3; i++ {
		if err := d.Submit(&Item{Func: noop}, false); err != nil {
			t.Fatalf("submit backlog item %d: %v", i, err)
		}
	}

	if got := d.ConcurrencyInfo().Current; got <= 1 {
		t.Fatalf("worker count = %d, want > 1 after exceeding rebalance threshold", got)
	}
	close(release)
}

func TestTerminateCancelAllDrainsQueue(t *testing.T) {
	d, err := New(WithConcurrency(1, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := make(chan struct{})
	unblock := make(chan struct{})
	first := &Item{Func: func(*Item) {
		close(block)
		<-unblock
	}}
	if err := d.Submit(first, false); err != nil {
		t.Fatalf("submit first: %v", err)
	}
	<-block

	var ran atomic.Bool
	queued := &Item{Func: func(*Item) { ran.Store(true) }}
	if err := d.Submit(queued, false); err != nil {
		t.Fatalf("submit queued: %v", err)
	}

	if err := d.Terminate(CancelAll); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	close(unblock)

	if err := d.AwaitTermination(); err != nil {
		t.Fatalf("AwaitTermination: %v", err)
	}
	if ran.Load() {
		t.Fatal("queued item ran despite CancelAll")
	}
	if !queued.IsCancelled() {
		t.Fatal("queued item should be marked cancelled")
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestAwaitTerminationBeforeTerminateIsNoSuchThing(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.AwaitTermination(); err != ErrNoSuchThing {
		t.Fatalf("AwaitTermination before Terminate = %v, want ErrNoSuchThing", err)
	}
}

func TestSuspendBlocksNewWorkFromRunning(t *testing.T) {
	d, err := New(WithConcurrency(1, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		d.Terminate(CancelAll | AwaitAll)
		d.Destroy()
	}()

	if err := d.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	var ran atomic.Bool
	it := &Item{Func: func(*Item) { ran.Store(true) }}
	if err := d.Submit(it, false); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Fatal("item ran while dispatcher suspended")
	}

	if err := d.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	deadline := time.After(time.Second)
	for !ran.Load() {
		select {
		case <-deadline:
			t.Fatal("item never ran after Resume")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestDestroyBusyUntilTerminated(t *testing.T) {
	d, err := New(WithConcurrency(1, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Destroy(); err != ErrBusy {
		t.Fatalf("Destroy before Terminate = %v, want ErrBusy", err)
	}
	d.Terminate(CancelAll | AwaitAll)
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}
