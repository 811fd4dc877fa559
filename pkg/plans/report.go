package plans

import (
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/samber/lo"
)

// Outcome is the terminal (or retryable) result of one deletion attempt.
type Outcome string

const (
	// OutcomeSuccess means the provider confirmed the deletion
	OutcomeSuccess Outcome = "success"
	// OutcomeAlreadyAbsent means the resource was gone before we deleted it,
	// which is the goal state and therefore counted as success
	OutcomeAlreadyAbsent Outcome = "already-absent"
	// OutcomeTransientFailure means the attempt failed but is worth retrying
	OutcomeTransientFailure Outcome = "transient-failure"
	// OutcomePermanentFailure means retries were exhausted or the provider
	// reported an unrecoverable condition
	OutcomePermanentFailure Outcome = "permanent-failure"
)

// DeletionAttempt records a single delete call for a single resource.
type DeletionAttempt struct {
	Ref     catalog.ResourceRef
	Attempt int
	Outcome Outcome
	Err     error
}

// KindSummary aggregates terminal outcomes for one resource kind.
type KindSummary struct {
	Success          int
	AlreadyAbsent    int
	PermanentFailure int
	FailedIDs        []string
}

// TeardownReport is the sole externally observable result of a teardown run.
type TeardownReport struct {
	Kinds map[catalog.ResourceKind]*KindSummary
	// Root is the outcome of the final root VPC deletion
	Root Outcome
	// RootErr holds the root deletion error, if any
	RootErr error
}

func NewTeardownReport() *TeardownReport {
	return &TeardownReport{
		Kinds: map[catalog.ResourceKind]*KindSummary{},
	}
}

// Record accumulates a terminal deletion attempt into the report.
// Callers are responsible for synchronization.
func (r *TeardownReport) Record(attempt DeletionAttempt) {
	summary, ok := r.Kinds[attempt.Ref.Kind]
	if !ok {
		summary = &KindSummary{}
		r.Kinds[attempt.Ref.Kind] = summary
	}
	switch attempt.Outcome {
	case OutcomeSuccess:
		summary.Success++
	case OutcomeAlreadyAbsent:
		summary.AlreadyAbsent++
	case OutcomePermanentFailure:
		summary.PermanentFailure++
		summary.FailedIDs = append(summary.FailedIDs, attempt.Ref.ID)
	}
}

// Failed reports whether anything, including the root itself, could not be deleted.
func (r *TeardownReport) Failed() bool {
	if r.Root == OutcomePermanentFailure {
		return true
	}
	return lo.SomeBy(lo.Values(r.Kinds), func(summary *KindSummary) bool {
		return summary.PermanentFailure > 0
	})
}

// FailedKinds returns the kinds with a non-zero permanent failure count in
// catalog declaration order, the likely culprits when the root deletion fails.
func (r *TeardownReport) FailedKinds() []catalog.ResourceKind {
	return lo.FilterMap(catalog.Entries(), func(entry catalog.Entry, _ int) (catalog.ResourceKind, bool) {
		summary, ok := r.Kinds[entry.Kind]
		return entry.Kind, ok && summary.PermanentFailure > 0
	})
}
