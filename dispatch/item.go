package dispatch

import "github.com/m68kernel/dispatch/qlist"

// ItemType distinguishes the five item kinds spec.md §3 names. User items
// are owned by the caller; conv items and conv timers are dispatcher-owned
// and cacheable.
type ItemType int

const (
	ItemTypeUser ItemType = iota
	ItemTypeUserSignal
	ItemTypeUserTimer
	ItemTypeConv
	ItemTypeConvTimer
)

// ItemState is a position in the state machine spec.md §3 permits:
// idle -> scheduled -> executing -> finished|cancelled -> scheduled (resubmit).
type ItemState int

const (
	ItemIdle ItemState = iota
	ItemScheduled
	ItemExecuting
	ItemFinished
	ItemCancelled
)

// ItemFlags is the bitset carried on every item.
type ItemFlags uint8

const (
	// FlagAwaitable marks an item whose retirement moves it to the zombie
	// list for a later Await, instead of returning it to cache or firing
	// RetireFunc.
	FlagAwaitable ItemFlags = 1 << iota
	// FlagCancelled records a pending cancel request. It may be set while
	// the item is still executing; cancellation only becomes the item's
	// true state at retirement (spec.md §3).
	FlagCancelled
	// FlagCacheable marks a dispatcher-owned item that returns to a free
	// list on retirement instead of invoking RetireFunc.
	FlagCacheable
	// FlagRepeating marks a timer or signal-monitor handler that
	// re-arms/re-enqueues itself after firing instead of retiring for good.
	FlagRepeating
)

// Func is the closure an item runs, taking the item itself so the closure
// can consult its own cancelled flag cooperatively.
type Func func(item *Item)

// Item is the unit of work spec.md §3 describes: type, subtype (the
// signal number for signal items), flags, state, the closure to run, an
// optional retire hook, and exactly one queue-membership link at a time.
type Item struct {
	qe qlist.SEntry

	Type       ItemType
	Subtype    int
	Flags      ItemFlags
	State      ItemState
	Func       Func
	RetireFunc Func
}

// newConvItem allocates a conv-item with its queue node's Value already
// pointing back at itself, so any list it ends up on can recover the
// *ConvItem from the bare *qlist.SEntry a pop/traversal returns.
func newConvItem() *ConvItem {
	ci := &ConvItem{}
	ci.qe.Value = ci
	return ci
}

// IsCancelled reports whether FlagCancelled is set, the cooperative signal
// a running closure is expected to poll via Item.IsCancelled().
func (it *Item) IsCancelled() bool { return it.Flags&FlagCancelled != 0 }

// reset restores an item to its post-acquire idle shape, matching spec.md
// §4.5's acquire step: "reset qe, func, retireFunc, type, subtype, flags,
// state = idle."
func (it *Item) reset() {
	it.qe.Unlink()
	it.Func = nil
	it.RetireFunc = nil
	it.Type = ItemTypeUser
	it.Subtype = 0
	it.Flags = 0
	it.State = ItemIdle
}

// ConvItem wraps a dispatcher-owned, cacheable item around an `async`
// (fire-and-forget) or `sync` (result-returning) user closure, per
// spec.md §3's "Conv-item".
// ConvItem.Fn holds either flavor of user closure Async/Sync accept
// (func(arg any) for fire-and-forget, func(arg any) int for a result-
// returning call); stored as any so Cancel can match against it via
// sameFunc regardless of which flavor was submitted.
type ConvItem struct {
	Item
	Fn     any
	Arg    any
	Result int
}

// reset restores a ConvItem to its post-acquire shape.
func (ci *ConvItem) reset() {
	ci.Item.reset()
	ci.Fn = nil
	ci.Arg = nil
	ci.Result = 0
}

// IgnoreArg is the sentinel spec.md §4.9 calls "ignore-arg": passing it to
// Cancel means match on Func alone, the same way the original's
// `_dispatch_worker_find_item` treats plain user/signal items (whose
// argument match is vacuous) distinctly from conv-items, whose argument is
// part of their identity.
var IgnoreArg = &struct{ ignoreArgSentinel byte }{}
