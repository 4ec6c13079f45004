package dispatch

import (
	"github.com/m68kernel/dispatch/vcpu"
)

// MaxNameLength bounds a dispatcher's name, matching spec.md §6's "short
// bound (e.g., 16-32 chars)".
const MaxNameLength = 31

// maxConcurrencyLimit mirrors dispatch_attr_t's INT8_MAX bound in the
// original (Kernel/Sources/dispatch/dispatch.c's _dispatch_init).
const maxConcurrencyLimit = 127

// DefaultRebalanceThreshold is the work_count above which the load
// balancer spawns an additional worker rather than keep piling items onto
// the least-loaded one. spec.md §9 flags the original's hardcoded "4" as
// an unjustified constant and asks that it be exposed as a tunable rather
// than baked in; WithRebalanceThreshold does that.
const DefaultRebalanceThreshold = 4

// Attr is a dispatcher's create-time configuration (spec.md §3's attr).
type Attr struct {
	MinConcurrency     int
	MaxConcurrency     int
	QoS                vcpu.QoS
	Priority           int
	Name               string
	RebalanceThreshold int
}

// Option configures an Attr, following the functional-options idiom the
// pack uses throughout (e.g. the retrieval pack's eventloop.Option).
type Option func(*Attr)

// WithConcurrency sets the minimum and maximum worker counts.
func WithConcurrency(min, max int) Option {
	return func(a *Attr) {
		a.MinConcurrency = min
		a.MaxConcurrency = max
	}
}

// WithQoS sets the dispatcher's scheduling class.
func WithQoS(q vcpu.QoS) Option {
	return func(a *Attr) { a.QoS = q }
}

// WithPriority sets the within-class priority.
func WithPriority(p int) Option {
	return func(a *Attr) { a.Priority = p }
}

// WithName sets the dispatcher's name. NewAttr truncates a name longer
// than MaxNameLength bytes to its first MaxNameLength bytes.
func WithName(n string) Option {
	return func(a *Attr) { a.Name = n }
}

// WithRebalanceThreshold overrides DefaultRebalanceThreshold.
func WithRebalanceThreshold(n int) Option {
	return func(a *Attr) { a.RebalanceThreshold = n }
}

// NewAttr builds and validates an Attr, applying defaults first. Validation
// happens eagerly, before any dispatcher state is touched, per spec.md §7's
// "Failure to validate configuration (INVAL) is caught at API entry before
// any state mutation."
func NewAttr(opts ...Option) (Attr, error) {
	a := Attr{
		MinConcurrency:     1,
		MaxConcurrency:     1,
		QoS:                vcpu.QoSUtility,
		Priority:           0,
		RebalanceThreshold: DefaultRebalanceThreshold,
	}
	for _, o := range opts {
		o(&a)
	}

	if a.MinConcurrency < 1 || a.MinConcurrency > a.MaxConcurrency || a.MaxConcurrency > maxConcurrencyLimit {
		return Attr{}, ErrInval
	}
	if a.QoS < vcpu.QoSBackground || a.QoS > vcpu.QoSRealtime {
		return Attr{}, ErrInval
	}
	if a.Priority < vcpu.PriorityLowest || a.Priority > vcpu.PriorityHighest {
		return Attr{}, ErrInval
	}
	if len(a.Name) > MaxNameLength {
		a.Name = a.Name[:MaxNameLength]
	}
	if a.RebalanceThreshold < 1 {
		return Attr{}, ErrInval
	}
	return a, nil
}
