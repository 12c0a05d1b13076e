package dataflow

import "github.com/das-labor/panopticon-sub002/rreil"

// BlockLocals holds the two per-block sets the semi-pruned SSA
// algorithm and classic liveness both build on (Cooper & Torczon's
// VarKill/UEVar): VarKill is every variable defined somewhere in the
// block; UEVar ("upward exposed") is every variable read in the block
// before any local definition of it.
type BlockLocals struct {
	VarKill map[rreil.VarName]bool
	UEVar   map[rreil.VarName]bool
}

// computeBlockLocals walks a block's statements once, in order,
// classifying each read as upward-exposed only if no preceding
// statement in the same block already defined that variable.
func computeBlockLocals(blk *rreil.BasicBlock) BlockLocals {
	locals := BlockLocals{VarKill: map[rreil.VarName]bool{}, UEVar: map[rreil.VarName]bool{}}
	for _, s := range blk.Statements() {
		for _, r := range s.Reads() {
			if name, ok := r.VariableName(); ok && !locals.VarKill[name] {
				locals.UEVar[name] = true
			}
		}
		if def, ok := s.DefinedValue(); ok {
			if name, ok := def.VariableName(); ok {
				locals.VarKill[name] = true
			}
		}
	}
	return locals
}

// Globals is the per-function result of the first liveness pass: the set of
// variables whose value may flow across a block boundary ("globals"), and for
// each such variable, the blocks containing an assignment to it — exactly the
// seed set semi-pruned phi placement iterates over.
type Globals struct {
	Locals    map[rreil.CFGNodeID]BlockLocals
	Vars      map[rreil.VarName]bool               // union of every block's UEVar: candidates for a phi somewhere
	DefBlocks map[rreil.VarName][]rreil.CFGNodeID   // blocks assigning each variable
	Width     map[rreil.VarName]rreil.Width         // width of each variable, from its first observed use/def
}

// ComputeGlobals computes BlockLocals for every BasicBlock node in fn,
// then unions their UEVar sets into Globals.Vars — a variable used
// upward-exposed in ANY block might need a phi at some merge point
// reachable from one of its definitions, even if that particular block
// isn't where the merge occurs.
func ComputeGlobals(fn *rreil.Function) *Globals {
	g := &Globals{
		Locals:    map[rreil.CFGNodeID]BlockLocals{},
		Vars:      map[rreil.VarName]bool{},
		DefBlocks: map[rreil.VarName][]rreil.CFGNodeID{},
		Width:     map[rreil.VarName]rreil.Width{},
	}
	recordWidth := func(v rreil.Value) {
		if name, ok := v.VariableName(); ok {
			if _, seen := g.Width[name]; !seen {
				g.Width[name] = v.Bits()
			}
		}
	}
	for id, n := range fn.CFG.Nodes {
		if n.Kind != rreil.NodeBasicBlock {
			continue
		}
		node := rreil.CFGNodeID(id)
		blk := &fn.Blocks[n.Block]
		locals := computeBlockLocals(blk)
		g.Locals[node] = locals
		for v := range locals.UEVar {
			g.Vars[v] = true
		}
		for v := range locals.VarKill {
			g.DefBlocks[v] = append(g.DefBlocks[v], node)
		}
		for _, s := range blk.Statements() {
			for _, r := range s.Reads() {
				recordWidth(r)
			}
			if def, ok := s.DefinedValue(); ok {
				recordWidth(def)
			}
		}
	}
	return g
}

// LiveOut computes the classic iterative backward liveness fixpoint (LiveOut(b)
// = union over successors s of (LiveIn(s)), LiveIn(b) = UEVar(b) ∪ (LiveOut(b)
// \ VarKill(b))) over fn's CFG, for anyone rendering or checking per-block
// live sets.
func LiveOut(fn *rreil.Function, globals *Globals) map[rreil.CFGNodeID]map[rreil.VarName]bool {
	liveIn := map[rreil.CFGNodeID]map[rreil.VarName]bool{}
	liveOut := map[rreil.CFGNodeID]map[rreil.VarName]bool{}
	for id, n := range fn.CFG.Nodes {
		if n.Kind == rreil.NodeBasicBlock {
			liveIn[rreil.CFGNodeID(id)] = map[rreil.VarName]bool{}
			liveOut[rreil.CFGNodeID(id)] = map[rreil.VarName]bool{}
		}
	}

	for changed := true; changed; {
		changed = false
		for id, n := range fn.CFG.Nodes {
			if n.Kind != rreil.NodeBasicBlock {
				continue
			}
			node := rreil.CFGNodeID(id)
			locals := globals.Locals[node]

			out := map[rreil.VarName]bool{}
			for _, e := range fn.CFG.Successors(node) {
				for v := range liveIn[e.To] {
					out[v] = true
				}
			}

			in := map[rreil.VarName]bool{}
			for v := range locals.UEVar {
				in[v] = true
			}
			for v := range out {
				if !locals.VarKill[v] {
					in[v] = true
				}
			}

			if !setEqual(liveOut[node], out) {
				liveOut[node] = out
				changed = true
			}
			if !setEqual(liveIn[node], in) {
				liveIn[node] = in
				changed = true
			}
		}
	}
	return liveOut
}

func setEqual(a, b map[rreil.VarName]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}
