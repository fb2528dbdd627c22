package engine

import (
	"fmt"

	"framexpr/internal/model"
)

// TriggerSequence computes the topological ordering of g's functions used
// to drive one solve cycle (spec §4.9 step 1): an edge runs from
// coupling.From to coupling.To for every non-feedback coupling. Feedback
// couplings — marked by the graph builder when they would otherwise close
// a cycle — are broken for ordering purposes only; the cycle a reference
// to their aspects reads is whatever that reference's own offset names.
//
// Ties among functions with no ordering constraint between them are
// broken by registration order, so repeated calls against the same graph
// always produce the same sequence (testable property 2, determinism).
func TriggerSequence(g *model.Graph) ([]*model.Function, error) {
	funcs := g.Functions()
	index := make(map[*model.Function]int, len(funcs))
	for i, f := range funcs {
		index[f] = i
	}

	indegree := make(map[*model.Function]int, len(funcs))
	adj := make(map[*model.Function][]*model.Function, len(funcs))
	for _, f := range funcs {
		indegree[f] = 0
	}
	for _, c := range g.Couplings() {
		if c.Feedback || c.From == nil || c.To == nil {
			continue
		}
		if _, ok := index[c.From]; !ok {
			continue
		}
		if _, ok := index[c.To]; !ok {
			continue
		}
		adj[c.From] = append(adj[c.From], c.To)
		indegree[c.To]++
	}

	ready := make([]*model.Function, 0, len(funcs))
	for _, f := range funcs {
		if indegree[f] == 0 {
			ready = append(ready, f)
		}
	}

	order := make([]*model.Function, 0, len(funcs))
	for len(ready) > 0 {
		lowest := 0
		for i := 1; i < len(ready); i++ {
			if index[ready[i]] < index[ready[lowest]] {
				lowest = i
			}
		}
		f := ready[lowest]
		ready = append(ready[:lowest], ready[lowest+1:]...)
		order = append(order, f)

		for _, next := range adj[f] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(funcs) {
		return nil, fmt.Errorf("trigger sequence: %d function(s) form a cycle not broken by a Feedback coupling", len(funcs)-len(order))
	}
	return order, nil
}
