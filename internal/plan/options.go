package plan

import "github.com/roach88/quadmatch/internal/ir"

// Observer receives row counts from executing steps. Counts are reported
// once per list, when its iterator finishes (exhausted, failed, or closed).
//
// Implementations must be safe for concurrent use when plans run in
// parallel.
type Observer interface {
	// ScanRows reports rows read from an Accessor for p.
	ScanRows(p ir.Pattern, n int)
	// BuildRows reports rows materialised into a hash table.
	BuildRows(p ir.Pattern, n int)
	// JoinRows reports rows emitted by the hash join for p.
	JoinRows(p ir.Pattern, n int)
}

type nopObserver struct{}

func (nopObserver) ScanRows(ir.Pattern, int)  {}
func (nopObserver) BuildRows(ir.Pattern, int) {}
func (nopObserver) JoinRows(ir.Pattern, int)  {}

// Option configures plan construction.
type Option func(*options)

type options struct {
	maxBuildRows int
	observer     Observer
}

func buildOptions(opts []Option) options {
	o := options{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxBuildRows caps the number of rows a HashJoinStep will hold in its
// hash table. A larger build side aborts the step with a *BuildLimitError.
// Zero (the default) means unlimited.
func WithMaxBuildRows(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxBuildRows = n
	}
}

// WithObserver installs an Observer. nil restores the no-op observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = nopObserver{}
		}
		o.observer = obs
	}
}
