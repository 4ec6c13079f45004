package dispatch

import "github.com/m68kernel/dispatch/qlist"

// Default free-list bounds, matching spec.md §4.5's suggested values.
const (
	MaxConvItemCacheCount = 8
	MaxTimerCacheCount    = 4
)

// itemCache holds the dispatcher's per-type free lists for the two
// cacheable item kinds (conv-items and conv-timers). Acquire pops from the
// free list or allocates; release appends to the tail of the free list
// (so cached values are reused in the order they were released, not most
// recent first) unless it is already at its bound, in which case the
// value is simply dropped
// (Go's GC reclaims it — there is no explicit deallocate step to mirror).
type itemCache struct {
	convItems      qlist.SList
	convItemCount  int
	convTimers     qlist.SList
	convTimerCount int
}

func (c *itemCache) acquireConvItem() *ConvItem {
	if e := c.convItems.PopFront(); e != nil {
		c.convItemCount--
		ci := e.Value.(*ConvItem)
		ci.reset()
		return ci
	}
	return newConvItem()
}

func (c *itemCache) releaseConvItem(ci *ConvItem) {
	ci.reset()
	if c.convItemCount >= MaxConvItemCacheCount {
		return
	}
	c.convItems.PushBack(&ci.qe)
	c.convItemCount++
}

func (c *itemCache) acquireConvTimer() *ConvTimer {
	if e := c.convTimers.PopFront(); e != nil {
		c.convTimerCount--
		ct := e.Value.(*ConvTimer)
		ct.reset()
		return ct
	}
	return newConvTimer()
}

func (c *itemCache) releaseConvTimer(ct *ConvTimer) {
	ct.reset()
	if c.convTimerCount >= MaxTimerCacheCount {
		return
	}
	c.convTimers.PushBack(&ct.qe)
	c.convTimerCount++
}

// drain empties both free lists, e.g. during Destroy.
func (c *itemCache) drain() {
	c.convItems.Drain(func(*qlist.SEntry) {})
	c.convItemCount = 0
	c.convTimers.Drain(func(*qlist.SEntry) {})
	c.convTimerCount = 0
}
