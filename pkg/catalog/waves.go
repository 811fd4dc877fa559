package catalog

import "github.com/samber/lo"

// Waves layers the catalog's static dependency DAG into an ordered deletion
// plan. Each wave is a set of kinds whose dependents have all been placed into
// earlier waves, so everything within a wave can be deleted concurrently.
// The root Vpc kind is excluded; the root is deleted last, after every wave.
//
// The layering is Kahn's algorithm: repeatedly extract the kinds that no
// remaining kind depends on. A cycle among distinct kinds cannot happen with a
// well-formed catalog, so it panics rather than returning an error.
func Waves() [][]ResourceKind {
	remaining := lo.FilterMap(entries, func(entry Entry, _ int) (ResourceKind, bool) {
		return entry.Kind, entry.Kind != Vpc
	})
	var waves [][]ResourceKind
	for len(remaining) > 0 {
		wave := lo.Filter(remaining, func(kind ResourceKind, _ int) bool {
			return !lo.SomeBy(remaining, func(other ResourceKind) bool {
				return other != kind && lo.Contains(Get(other).DependsOn, kind)
			})
		})
		if len(wave) == 0 {
			panic("resource catalog contains a dependency cycle")
		}
		waves = append(waves, wave)
		remaining = lo.Without(remaining, wave...)
	}
	return waves
}
