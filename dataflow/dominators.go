// Package dataflow implements liveness analysis and SSA construction over an
// rreil.Function's CFG. Dominator computation (this file) uses the "Simple,
// Fast Dominance Algorithm" (Cooper/Harvey/Kennedy) over a reverse-postorder
// traversal, skipping predecessors not yet reached on the first pass (needed
// for correctness on nested loops). Blocks are addressed by rreil.CFGNodeID
// rather than pointer, since the CFG is a handle graph, not an owning-pointer
// one.
package dataflow

import "github.com/das-labor/panopticon-sub002/rreil"

// Dominators maps every CFG node reachable from the entry to its immediate
// dominator, plus the reverse-postorder numbering used to break ties during the
// fixpoint.
type Dominators struct {
	idom  map[rreil.CFGNodeID]rreil.CFGNodeID
	rpo   map[rreil.CFGNodeID]int
	order []rreil.CFGNodeID // reverse postorder, order[0] == entry
}

// ImmediateDominator returns n's immediate dominator. False if n is
// unreachable from the entry this Dominators was computed from.
func (d *Dominators) ImmediateDominator(n rreil.CFGNodeID) (rreil.CFGNodeID, bool) {
	v, ok := d.idom[n]
	return v, ok
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (d *Dominators) Dominates(a, b rreil.CFGNodeID) bool {
	for {
		if a == b {
			return true
		}
		parent, ok := d.idom[b]
		if !ok || parent == b {
			return a == b
		}
		b = parent
	}
}

// ReversePostorder returns the node visitation order dominator
// computation used — entry first, every reachable node exactly once.
// The SSA renaming pass (ssa.go) uses this numbering to order each node's
// dominator-tree children.
func (d *Dominators) ReversePostorder() []rreil.CFGNodeID {
	return d.order
}

// ComputeDominators runs dominator computation over fn's CFG starting
// from entry.
func ComputeDominators(fn *rreil.Function, entry rreil.CFGNodeID) *Dominators {
	order := reversePostorder(fn, entry)
	rpo := make(map[rreil.CFGNodeID]int, len(order))
	for i, n := range order {
		rpo[n] = i
	}

	idom := make(map[rreil.CFGNodeID]rreil.CFGNodeID, len(order))
	idom[entry] = entry

	for changed := true; changed; {
		changed = false
		for _, n := range order[1:] {
			var chosen rreil.CFGNodeID
			haveChosen := false
			for _, e := range fn.CFG.Predecessors(n) {
				pred := e.From
				if _, ok := idom[pred]; !ok {
					continue // not yet reachable in this fixpoint pass
				}
				if !haveChosen {
					chosen, haveChosen = pred, true
					continue
				}
				chosen = intersect(idom, rpo, chosen, pred)
			}
			if haveChosen {
				if prev, ok := idom[n]; !ok || prev != chosen {
					idom[n] = chosen
					changed = true
				}
			}
		}
	}

	return &Dominators{idom: idom, rpo: rpo, order: order}
}

// intersect is the paper's `intersect`: walk both fingers up to their
// immediate dominators, the one with the larger (later) reverse
// postorder number moving each step, until they meet.
func intersect(idom map[rreil.CFGNodeID]rreil.CFGNodeID, rpo map[rreil.CFGNodeID]int, a, b rreil.CFGNodeID) rreil.CFGNodeID {
	for a != b {
		for rpo[a] > rpo[b] {
			a = idom[a]
		}
		for rpo[b] > rpo[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder computes a postorder DFS from entry over fn.CFG, then
// reverses it, as passCalculateImmediateDominators does. Successors are
// pushed in CFG.Successors order onto a LIFO stack, so the last-added
// successor is explored first.
func reversePostorder(fn *rreil.Function, entry rreil.CFGNodeID) []rreil.CFGNodeID {
	const unseen, seen, done = 0, 1, 2
	state := map[rreil.CFGNodeID]int{}

	var post []rreil.CFGNodeID
	stack := []rreil.CFGNodeID{entry}
	state[entry] = seen
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch state[n] {
		case seen:
			stack = append(stack, n)
			for _, e := range fn.CFG.Successors(n) {
				if state[e.To] == unseen {
					state[e.To] = seen
					stack = append(stack, e.To)
				}
			}
			state[n] = done
		case done:
			post = append(post, n)
		}
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
