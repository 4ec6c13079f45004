package dispatch

import (
	"testing"

	"github.com/m68kernel/dispatch/qlist"
)

func TestItemResetClearsFieldsAndUnlinksQueueEntry(t *testing.T) {
	it := &Item{
		Type:       ItemTypeUserTimer,
		Subtype:    3,
		Flags:      FlagCancelled | FlagRepeating,
		State:      ItemFinished,
		Func:       func(*Item) {},
		RetireFunc: func(*Item) {},
	}
	var list qlist.SList
	var next qlist.SEntry
	list.PushBack(&it.qe)
	list.PushBack(&next)

	it.reset()

	if it.Type != ItemTypeUser {
		t.Fatalf("Type = %v, want ItemTypeUser", it.Type)
	}
	if it.Subtype != 0 {
		t.Fatalf("Subtype = %d, want 0", it.Subtype)
	}
	if it.Flags != 0 {
		t.Fatalf("Flags = %v, want 0", it.Flags)
	}
	if it.State != ItemIdle {
		t.Fatalf("State = %v, want ItemIdle", it.State)
	}
	if it.Func != nil || it.RetireFunc != nil {
		t.Fatal("Func/RetireFunc should be nil after reset")
	}
	if qlist.Next(&it.qe) != nil {
		t.Fatal("reset should clear the item's queue link")
	}
}

func TestItemIsCancelled(t *testing.T) {
	it := &Item{}
	if it.IsCancelled() {
		t.Fatal("fresh item should not report cancelled")
	}
	it.Flags |= FlagCancelled
	if !it.IsCancelled() {
		t.Fatal("IsCancelled should observe FlagCancelled")
	}
}

func TestConvItemResetClearsAdapterFields(t *testing.T) {
	ci := newConvItem()
	ci.Fn = func(arg any) {}
	ci.Arg = "x"
	ci.Result = 7
	ci.Flags = FlagCacheable

	ci.reset()

	if ci.Fn != nil || ci.Arg != nil || ci.Result != 0 {
		t.Fatalf("ConvItem fields not cleared: %+v", ci)
	}
	if ci.Flags != 0 {
		t.Fatalf("Flags = %v, want 0", ci.Flags)
	}
	if ci.qe.Value != ci {
		t.Fatal("reset must not disturb the queue node's Value back-reference")
	}
}

func TestConvTimerResetClearsAdapterFields(t *testing.T) {
	ct := newConvTimer()
	ct.Fn = func(arg any) {}
	ct.Arg = "x"
	ct.Interval = Forever

	ct.reset()

	if ct.Fn != nil || ct.Arg != nil {
		t.Fatalf("ConvTimer fields not cleared: %+v", ct)
	}
	if ct.Interval != 0 {
		t.Fatalf("Interval = %v, want 0", ct.Interval)
	}
	if ct.qe.Value != ct {
		t.Fatal("reset must not disturb the queue node's Value back-reference")
	}
}
