package dispatch

import (
	"reflect"

	"github.com/m68kernel/dispatch/qlist"
)

// sameFunc reports whether a and b are the same function value. Go func
// values are only comparable to nil, so identity is compared via the
// underlying code pointer, the same technique used to compare callback
// targets when cancelling by func/arg (spec.md §4.9).
func sameFunc(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Kind() != reflect.Func || vb.Kind() != reflect.Func {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

// itemOf recovers the *Item embedded in whatever concrete type owns e:
// a plain *Item, or the Item embedded in a *ConvItem, mirroring timerOf
// for the work-queue's node shapes.
func itemOf(e *qlist.SEntry) *Item {
	switch v := e.Value.(type) {
	case *Item:
		return v
	case *ConvItem:
		return &v.Item
	default:
		panic("dispatch: work queue node with unexpected value type")
	}
}
