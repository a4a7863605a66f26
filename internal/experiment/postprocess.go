package experiment

import (
	"context"
	"fmt"

	"github.com/coral-mesh/calltree/internal/scope"
	"github.com/coral-mesh/calltree/internal/visitor"
)

const (
	callersRootName = "Callers View"
	flatRootName    = "Flat View"
)

// Postprocess computes the metric values of a freshly loaded calling context
// tree and creates the callers and flat views.
//
// The passes run only when the first view root is a calling context tree;
// any other layout (a flat-only profile) just gets percent annotations.
// Running Postprocess again recomputes the same values and rebuilds both
// derived views.
func (e *Experiment) Postprocess(ctx context.Context) error {
	first := e.firstRoot()
	if first == nil {
		e.logger.Debug().Msg("Empty experiment, skipping postprocessing")
		return nil
	}
	if first.RootType() != scope.RootCallingContextTree {
		e.logger.Debug().
			Str("root", first.RootType().String()).
			Msg("First root is not a calling context tree, computing percentages only")
		return e.stats.observe("percent", func() error {
			visitor.Percent(e.tree, e.metrics, first.ID())
			return nil
		})
	}
	cct := first.ID()

	if e.metrics.InclusiveNeeded() {
		if err := e.stats.observe("inclusive", func() error {
			visitor.Inclusive(e.tree, e.metrics, cct)
			return ctx.Err()
		}); err != nil {
			return fmt.Errorf("inclusive pass: %w", err)
		}
	}
	if err := e.stats.observe("exclusive", func() error {
		visitor.Exclusive(e.tree, e.metrics, cct)
		return ctx.Err()
	}); err != nil {
		return fmt.Errorf("exclusive pass: %w", err)
	}
	_ = e.stats.observe("partner", func() error {
		visitor.CopyPartners(e.tree, e.metrics, cct, e.logger)
		return nil
	})
	_ = e.stats.observe("percent", func() error {
		visitor.Percent(e.tree, e.metrics, cct)
		return nil
	})
	if err := e.rebuildViews(cct); err != nil {
		return err
	}

	e.logger.Debug().
		Int("scopes", e.tree.Len()).
		Int("metrics", e.metrics.Len()).
		Msg("Postprocessing complete")
	return nil
}

func (e *Experiment) firstRoot() *scope.Scope {
	r := e.tree.Get(e.root)
	if r == nil || r.ChildCount() == 0 {
		return nil
	}
	return e.tree.Get(r.ChildIDs()[0])
}

// rebuildViews replaces the callers and flat roots with fresh ones derived
// from the calling context tree at cct. The flat view is populated lazily.
func (e *Experiment) rebuildViews(cct scope.ID) error {
	for _, id := range []scope.ID{e.callersRoot, e.flatRoot} {
		if e.tree.Get(id) != nil {
			if err := e.tree.Detach(id); err != nil {
				return err
			}
		}
	}

	var err error
	// derived roots stand for the whole run, as the CCT root does
	cctIndex := e.tree.Get(cct).CCTIndex()
	if e.callersRoot, err = e.tree.Add(e.root, scope.Spec{
		Name:     callersRootName,
		Kind:     scope.KindRoot,
		RootType: scope.RootCallerTree,
		CCTIndex: cctIndex,
		Source:   cct,
	}); err != nil {
		return fmt.Errorf("create callers root: %w", err)
	}
	e.callers = visitor.NewCallers(e.tree, e.metrics, cct, e.callersRoot, e.stats.CallersExpansions.Inc)
	if err := e.stats.observe("callers", func() error {
		if err := e.callers.Build(); err != nil {
			return err
		}
		visitor.Annotate(e.tree.Get(e.callersRoot), e.tree.Get(e.callersRoot), e.metrics)
		return nil
	}); err != nil {
		return fmt.Errorf("build callers view: %w", err)
	}

	if e.flatRoot, err = e.tree.Add(e.root, scope.Spec{
		Name:     flatRootName,
		Kind:     scope.KindRoot,
		RootType: scope.RootFlat,
		CCTIndex: cctIndex,
		Source:   cct,
	}); err != nil {
		return fmt.Errorf("create flat root: %w", err)
	}
	e.flatBuilt = false
	return nil
}

// ensureFlat populates the flat view once.
func (e *Experiment) ensureFlat() error {
	if e.flatBuilt || e.tree.Get(e.flatRoot) == nil {
		return nil
	}
	cct, err := e.CCTRoot()
	if err != nil {
		return err
	}
	if err := e.stats.observe("flat", func() error {
		if err := visitor.Flat(e.tree, e.metrics, cct, e.flatRoot); err != nil {
			return err
		}
		visitor.Percent(e.tree, e.metrics, e.flatRoot)
		return nil
	}); err != nil {
		return fmt.Errorf("build flat view: %w", err)
	}
	e.flatBuilt = true
	return nil
}

// Predicate decides whether a calling context scope, and with it its whole
// subtree, is kept by Filter.
type Predicate func(s *scope.Scope) bool

// Filter removes every calling context subtree whose head keep rejects,
// drops every other view root and rebuilds the callers and flat views from
// what remains. Values of retained scopes are not recomputed.
func (e *Experiment) Filter(keep Predicate) error {
	cct, err := e.CCTRoot()
	if err != nil {
		return err
	}
	return e.stats.observe("filter", func() error {
		var rejected []scope.ID
		e.tree.Walk(cct, func(s *scope.Scope, _, _ int) scope.Action {
			if s.IsRoot() || keep(s) {
				return scope.Continue
			}
			rejected = append(rejected, s.ID())
			return scope.SkipChildren
		}, nil)
		for _, id := range rejected {
			if err := e.tree.Detach(id); err != nil {
				return err
			}
		}

		for _, c := range e.tree.Children(e.root) {
			if c.RootType() == scope.RootCallingContextTree {
				continue
			}
			if err := e.tree.Detach(c.ID()); err != nil {
				return err
			}
		}
		e.callers = nil
		e.callersRoot, e.flatRoot = scope.NoID, scope.NoID

		e.logger.Debug().Int("removed", len(rejected)).Msg("Filtered calling context tree")
		return e.rebuildViews(cct)
	})
}
