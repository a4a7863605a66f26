package visitor

import (
	"github.com/coral-mesh/calltree/internal/scope"
)

// DefaultHotPathThreshold is the fraction of the parent value a child must
// reach to stay on the hot path.
const DefaultHotPathThreshold = 0.5

// HotPath follows the child with the largest value from start while that
// child keeps at least threshold times its parent's value. The returned path
// starts with start. found is false when the very first step already falls
// below the threshold.
//
// children lists the children of a scope (expanding lazily built views) and
// value resolves the metric of interest.
func HotPath(
	start *scope.Scope,
	children func(scope.ID) []*scope.Scope,
	value func(*scope.Scope) float64,
	threshold float64,
) (path []*scope.Scope, found bool) {
	if start == nil {
		return nil, false
	}
	path = []*scope.Scope{start}
	for cur := start; ; {
		kids := children(cur.ID())
		if len(kids) == 0 {
			return path, true
		}
		hot := kids[0]
		hotValue := value(hot)
		for _, k := range kids[1:] {
			if v := value(k); v > hotValue {
				hot, hotValue = k, v
			}
		}
		if hotValue < threshold*value(cur) {
			return path, len(path) > 1
		}
		path = append(path, hot)
		cur = hot
	}
}
