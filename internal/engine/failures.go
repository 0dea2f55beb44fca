package engine

import (
	"github.com/hlop3z/applyalter/internal/alerr"
)

// FailureSet collects execution failures across the whole run and enforces
// the failure policy. With the abort policy, the first failure is raised
// immediately; with the ignore policy, failures accumulate and surface as one
// composite error at run end.
//
// Configuration errors are never deferred: they mean the alter itself is
// unusable, so they abort regardless of policy.
type FailureSet struct {
	ignore bool
	agg    alerr.Aggregate
}

// NewFailureSet creates a failure set with the given policy.
func NewFailureSet(ignoreFailures bool) *FailureSet {
	return &FailureSet{ignore: ignoreFailures}
}

// AddOrRaise records the failure under the ignore policy and returns nil,
// or returns the failure unrecorded when it must abort the run.
func (f *FailureSet) AddOrRaise(err *alerr.Error) error {
	if err == nil {
		return nil
	}
	if !f.ignore || alerr.IsConfiguration(err) {
		return err
	}
	f.agg.Add(err)
	return nil
}

// Empty reports whether any failure has been recorded since the run began.
func (f *FailureSet) Empty() bool {
	return f.agg.Empty()
}

// Err returns the composite error enumerating every captured failure, or nil.
func (f *FailureSet) Err() error {
	if f.agg.Empty() {
		return nil
	}
	return &f.agg
}

// Failures returns the captured failures in order.
func (f *FailureSet) Failures() []*alerr.Error {
	return f.agg.Failures()
}
