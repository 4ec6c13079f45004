package dispatch

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// currentWorkers maps a goroutine id to the Worker running on it. Go has
// no analogue of thread-specific storage, which spec.md's
// CurrentQueue/CurrentItem/CancelCurrentItem rely on implicitly (they take
// no dispatcher/item argument — the original reads them off the calling
// vcpu). A package-level map keyed by goroutine id, populated for the
// duration of Worker.run and cleared on return, is the narrowest
// substitute available; it is used nowhere else in this package, since
// every other internal path already has the *Worker or *Dispatcher it
// needs passed down explicitly.
var currentWorkers sync.Map // goroutine id (uint64) -> *Worker

// goroutineID parses the numeric id out of runtime.Stack's header line
// ("goroutine 123 [running]:..."). There is no supported API for this;
// it is deliberately confined to this one file and used only to key
// currentWorkers.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// bindCurrentWorker registers w as the worker running on the calling
// goroutine. Called once at the top of Worker.run.
func bindCurrentWorker(w *Worker) {
	currentWorkers.Store(goroutineID(), w)
}

// unbindCurrentWorker removes the calling goroutine's registration.
// Deferred from Worker.run so it runs even if the loop panics.
func unbindCurrentWorker() {
	currentWorkers.Delete(goroutineID())
}

func currentWorker() *Worker {
	v, ok := currentWorkers.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Worker)
}

// CurrentQueue returns the dispatcher owning the item currently executing
// on the calling goroutine, or nil if the caller is not running inside a
// dispatcher item (spec.md §4.9's dispatch_get_current_queue).
func CurrentQueue() *Dispatcher {
	w := currentWorker()
	if w == nil {
		return nil
	}
	return w.owner
}

// CurrentItem returns the item currently executing on the calling
// goroutine, or nil outside of one (spec.md's dispatch_get_current_item).
func CurrentItem() *Item {
	w := currentWorker()
	if w == nil {
		return nil
	}
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	return w.currentItem
}

// CancelCurrentItem sets FlagCancelled on the item currently executing on
// the calling goroutine. A no-op outside of one. Matches spec.md's
// "cooperative self-cancellation" use case: a long-running closure
// polling Item.IsCancelled after a caller elsewhere calls CancelItem
// cannot itself reach the *Item without this.
func CancelCurrentItem() {
	w := currentWorker()
	if w == nil {
		return
	}
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	if w.currentItem != nil {
		w.currentItem.Flags |= FlagCancelled
	}
}
