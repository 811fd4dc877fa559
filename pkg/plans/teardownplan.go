package plans

import (
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/samber/lo"
)

// TeardownPlan is the ordered set of deletion waves for one root VPC.
// It is built once per invocation and never mutated during execution.
type TeardownPlan struct {
	Metadata TeardownMetadata
	Spec     TeardownSpec
}

type TeardownMetadata struct {
	Region string
	VpcID  string
}

type TeardownSpec struct {
	// Root is the VPC itself, deleted after every wave completes.
	// A zero ID means the root was already absent and there is nothing to do.
	Root  catalog.ResourceRef
	Waves []Wave
}

// Wave is a batch of discovered resources that may be deleted concurrently.
// Waves execute strictly in order: wave N+1 does not start until every ref in
// wave N has reached a terminal outcome.
type Wave struct {
	Number int
	Refs   []catalog.ResourceRef
}

// Kinds returns the distinct resource kinds present in the wave, in the order
// the refs were discovered.
func (w Wave) Kinds() []catalog.ResourceKind {
	return lo.Uniq(lo.Map(w.Refs, func(ref catalog.ResourceRef, _ int) catalog.ResourceKind {
		return ref.Kind
	}))
}

// RootAbsent reports whether the plan found no root VPC to tear down.
func (p TeardownPlan) RootAbsent() bool {
	return p.Spec.Root.ID == ""
}

// RefCount returns the total number of discovered dependent resources.
func (p TeardownPlan) RefCount() int {
	return lo.SumBy(p.Spec.Waves, func(wave Wave) int { return len(wave.Refs) })
}
