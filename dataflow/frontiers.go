package dataflow

import "github.com/das-labor/panopticon-sub002/rreil"

// DominanceFrontiers computes, for every node reachable from dom's
// entry, the set of nodes in its dominance frontier (Cytron et al.):
// n is in DF(m) iff m dominates a predecessor of n but does not
// strictly dominate n itself. This is the standard join-point
// detection that semi-pruned phi placement (ssa.go) iterates over.
func DominanceFrontiers(fn *rreil.Function, dom *Dominators) map[rreil.CFGNodeID][]rreil.CFGNodeID {
	df := map[rreil.CFGNodeID][]rreil.CFGNodeID{}
	present := map[rreil.CFGNodeID]map[rreil.CFGNodeID]bool{}

	for _, n := range dom.order {
		preds := fn.CFG.Predecessors(n)
		if len(preds) < 2 {
			continue
		}
		idomN, ok := dom.ImmediateDominator(n)
		if !ok {
			continue
		}
		for _, e := range preds {
			runner := e.From
			if _, ok := dom.ImmediateDominator(runner); !ok {
				continue // predecessor itself unreachable
			}
			for runner != idomN {
				if present[runner] == nil {
					present[runner] = map[rreil.CFGNodeID]bool{}
				}
				if !present[runner][n] {
					present[runner][n] = true
					df[runner] = append(df[runner], n)
				}
				next, ok := dom.ImmediateDominator(runner)
				if !ok || next == runner {
					break
				}
				runner = next
			}
		}
	}
	return df
}
