package dispatch

import "testing"

func TestItemCacheAcquireReleaseReusesConvItem(t *testing.T) {
	var c itemCache

	ci := c.acquireConvItem()
	ci.Fn = func(arg any) {}
	ci.Arg = "x"
	c.releaseConvItem(ci)

	if c.convItemCount != 1 {
		t.Fatalf("convItemCount = %d, want 1", c.convItemCount)
	}

	got := c.acquireConvItem()
	if got != ci {
		t.Fatal("acquireConvItem should reuse the released instance")
	}
	if got.Fn != nil || got.Arg != nil {
		t.Fatal("reused ConvItem should have been reset")
	}
	if c.convItemCount != 0 {
		t.Fatalf("convItemCount after reacquire = %d, want 0", c.convItemCount)
	}
}

func TestItemCacheReleaseConvItemBounded(t *testing.T) {
	var c itemCache
	var released []*ConvItem
	for i := 0; i < MaxConvItemCacheCount+2; i++ {
		ci := newConvItem()
		c.releaseConvItem(ci)
		released = append(released, ci)
	}
	if c.convItemCount != MaxConvItemCacheCount {
		t.Fatalf("convItemCount = %d, want bound %d", c.convItemCount, MaxConvItemCacheCount)
	}
}

func TestItemCacheAcquireReleaseReusesConvTimer(t *testing.T) {
	var c itemCache

	ct := c.acquireConvTimer()
	ct.Fn = func(arg any) {}
	c.releaseConvTimer(ct)

	if c.convTimerCount != 1 {
		t.Fatalf("convTimerCount = %d, want 1", c.convTimerCount)
	}
	got := c.acquireConvTimer()
	if got != ct {
		t.Fatal("acquireConvTimer should reuse the released instance")
	}
	if got.Fn != nil {
		t.Fatal("reused ConvTimer should have been reset")
	}
}

func TestItemCacheReleaseConvTimerBounded(t *testing.T) {
	var c itemCache
	for i := 0; i < MaxTimerCacheCount+3; i++ {
		c.releaseConvTimer(newConvTimer())
	}
	if c.convTimerCount != MaxTimerCacheCount {
		t.Fatalf("convTimerCount = %d, want bound %d", c.convTimerCount, MaxTimerCacheCount)
	}
}

func TestItemCacheDrainClearsBothLists(t *testing.T) {
	var c itemCache
	c.releaseConvItem(newConvItem())
	c.releaseConvTimer(newConvTimer())
	c.drain()
	if c.convItemCount != 0 || c.convTimerCount != 0 {
		t.Fatalf("counts after drain = %d/%d, want 0/0", c.convItemCount, c.convTimerCount)
	}
	if !c.convItems.IsEmpty() || !c.convTimers.IsEmpty() {
		t.Fatal("free lists should be empty after drain")
	}
}
