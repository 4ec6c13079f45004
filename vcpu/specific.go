package vcpu

import "sync"

// specific is a process-wide, per-vcpu key/value slot, the Go stand-in for
// the original's thread-specific storage (used by the dispatcher to find
// "the worker running on this vcpu" from code that only has a *VCPU, e.g.
// from inside a submitted work item). A real TLS slot isn't meaningful for
// a goroutine, so this is keyed by vcpu id instead and guarded by a single
// mutex; dispatcher callers only ever touch it at item-dispatch boundaries,
// never on every instruction, so contention is not a concern.
var specific = struct {
	mu   sync.Mutex
	vals map[uint64]any
}{vals: make(map[uint64]any)}

// SetSpecific associates value with v, replacing any prior value.
func (v *VCPU) SetSpecific(value any) {
	specific.mu.Lock()
	specific.vals[v.id] = value
	specific.mu.Unlock()
}

// Specific returns the value previously given to SetSpecific, or nil if
// none was set.
func (v *VCPU) Specific() any {
	specific.mu.Lock()
	defer specific.mu.Unlock()
	return specific.vals[v.id]
}

// ClearSpecific drops v's associated value. Called once a vcpu's goroutine
// is retiring, so the map doesn't grow unbounded across the dispatcher's
// lifetime as vcpus come and go.
func (v *VCPU) ClearSpecific() {
	specific.mu.Lock()
	delete(specific.vals, v.id)
	specific.mu.Unlock()
}
