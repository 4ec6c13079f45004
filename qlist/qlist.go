// Package qlist provides the intrusive list primitives the dispatcher uses
// to place items and workers on exactly one queue at a time without a
// separate allocation per queue node.
//
// Two shapes are needed: SList, a singly-linked FIFO with O(1) append and
// pop-front plus a predecessor-tracked removal for withdrawing an arbitrary
// element; and DList, a doubly-linked list with O(1) removal by node,
// used for the dispatcher's workers list.
package qlist

// SEntry is an intrusive node embedded in values placed on an SList. Value
// carries a back-reference to the owning value, the same shape as the
// standard library's container/list.Element.Value, so callers can recover
// the owner from a node returned by First/PopFront/Next without an
// unsafe.Pointer cast.
type SEntry struct {
	next  *SEntry
	Value any
}

// SList is a singly-linked FIFO queue of SEntry nodes.
// The zero value is an empty list.
type SList struct {
	first *SEntry
	last  *SEntry
}

// Unlink clears e's list link without touching e.Value, so a node can be
// recycled (e.g. when an item is returned to a cache) without losing its
// back-reference.
func (e *SEntry) Unlink() { e.next = nil }

// IsEmpty reports whether the list has no elements.
func (l *SList) IsEmpty() bool { return l.first == nil }

// First returns the head node, or nil if the list is empty.
func (l *SList) First() *SEntry { return l.first }

// PushBack appends e to the tail of the list. e must not already be on a
// list.
func (l *SList) PushBack(e *SEntry) {
	e.next = nil
	if l.last == nil {
		l.first = e
		l.last = e
		return
	}
	l.last.next = e
	l.last = e
}

// PopFront removes and returns the head of the list, or nil if empty.
func (l *SList) PopFront() *SEntry {
	e := l.first
	if e == nil {
		return nil
	}
	l.first = e.next
	if l.first == nil {
		l.last = nil
	}
	e.next = nil
	return e
}

// Next returns the successor of e within whatever list e is currently on.
// Callers that remove e from the list while iterating must capture Next(e)
// before calling Remove, since Remove clears e's own link.
func Next(e *SEntry) *SEntry { return e.next }

// Remove removes e from the list, given its predecessor pred (nil if e is
// the head). It is the caller's responsibility to have located pred by a
// prior traversal; this mirrors the predecessor-tracked scan idiom used
// throughout the dispatcher's withdraw paths.
func (l *SList) Remove(pred, e *SEntry) {
	if pred == nil {
		l.first = e.next
	} else {
		pred.next = e.next
	}
	if l.last == e {
		l.last = pred
	}
	e.next = nil
}

// Drain empties the list, invoking fn for every removed node in FIFO order.
func (l *SList) Drain(fn func(*SEntry)) {
	for {
		e := l.PopFront()
		if e == nil {
			return
		}
		fn(e)
	}
}

// DEntry is an intrusive node embedded in values placed on a DList. Value
// carries a back-reference to the owning value; see SEntry.Value.
type DEntry struct {
	next  *DEntry
	prev  *DEntry
	Value any
}

// DList is a doubly-linked, circular, sentinel-headed list supporting O(1)
// removal by node. The zero value is not ready to use; call Init first.
type DList struct {
	sentinel DEntry
}

// Init makes the list empty. Must be called before use.
func (l *DList) Init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
}

// IsEmpty reports whether the list has no elements.
func (l *DList) IsEmpty() bool { return l.sentinel.next == &l.sentinel }

// PushBack appends e to the tail of the list. e must not already be on a
// list.
func (l *DList) PushBack(e *DEntry) {
	e.prev = l.sentinel.prev
	e.next = &l.sentinel
	l.sentinel.prev.next = e
	l.sentinel.prev = e
}

// First returns the head node, or nil if the list is empty.
func (l *DList) First() *DEntry {
	if l.IsEmpty() {
		return nil
	}
	return l.sentinel.next
}

// Remove removes e from whichever list it is on.
func (l *DList) Remove(e *DEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
}

// Each calls fn for every entry currently in the list, head to tail. fn may
// remove the current entry (the successor is captured before the call).
func (l *DList) Each(fn func(*DEntry)) {
	e := l.sentinel.next
	for e != &l.sentinel {
		next := e.next
		fn(e)
		e = next
	}
}

// Len returns the number of elements in the list, by linear scan. Intended
// for invariant-checking in tests, not hot paths.
func (l *DList) Len() int {
	n := 0
	l.Each(func(*DEntry) { n++ })
	return n
}
