package scope

// Action tells Walk how to continue after a pre-order visit.
type Action int

const (
	// Continue descends into the children.
	Continue Action = iota
	// SkipChildren does not descend but continues with the siblings.
	SkipChildren
	// Stop ends the traversal.
	Stop
)

// VisitFunc is called with a scope, its depth below the walk start and its
// index among its siblings.
type VisitFunc func(s *Scope, depth, childIndex int) Action

// Walk performs a depth-first traversal from start in stored child order.
// pre is called before the children, post (optional) after them. Callbacks
// may change metric values of the visited scope or its ancestors but must
// not change the shape of the walked subtree. Adding scopes elsewhere in the
// arena, as view builders do, is allowed.
func (t *Tree) Walk(start ID, pre, post VisitFunc) {
	s := t.Get(start)
	if s == nil {
		return
	}
	t.walk(s, 0, 0, pre, post)
}

func (t *Tree) walk(s *Scope, depth, index int, pre, post VisitFunc) bool {
	action := Continue
	if pre != nil {
		action = pre(s, depth, index)
	}
	switch action {
	case Stop:
		return false
	case Continue:
		for i, c := range s.children {
			if !t.walk(t.scopes[c], depth+1, i, pre, post) {
				return false
			}
		}
	}
	if post != nil && post(s, depth, index) == Stop {
		return false
	}
	return true
}

// PostOrder visits every scope below and including start after its
// children.
func (t *Tree) PostOrder(start ID, fn func(s *Scope)) {
	t.Walk(start, nil, func(s *Scope, _, _ int) Action {
		fn(s)
		return Continue
	})
}
