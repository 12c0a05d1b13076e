package dataflow

import "github.com/das-labor/panopticon-sub002/rreil"

// ConstructSSA rewrites fn in place into SSA form: every variable definition
// gets a fresh subscript, phi statements are inserted at every merge point a
// variable's value could disagree across, and every read is rewritten to name
// the specific definition that reaches it. Returns the Dominators computed
// along the way, since the abstract-interpretation fixpoint walks blocks in
// the same reverse-postorder. This is classic dominance-frontier phi
// placement with 3-argument chained phi statements, rather than a
// block-argument SSA form.
func ConstructSSA(fn *rreil.Function) (*Dominators, error) {
	if err := fn.CheckInvariants(); err != nil {
		return nil, err
	}

	dom := ComputeDominators(fn, fn.Entry)
	globals := ComputeGlobals(fn)
	df := DominanceFrontiers(fn, dom)

	// Order matters: PrependSynthetic always puts its mnemonic at the very
	// front, so whichever of these runs last ends up executing first.
	// __init must precede __phi at any block needing both (e.g. a
	// self-looping entry block), so phis are placed first.
	phis := insertPhis(fn, df, globals)
	insertInits(fn, globals)
	rename(fn, dom, phis, globals)

	return dom, fn.CheckInvariants()
}

// insertInits gives every global variable (step 0: every name that might be
// read before any definition reaches it, i.e. Globals.Vars) a synthetic
// Initialize definition at the entry block, so renaming never has to treat "no
// reaching definition" as a silent default - an uninitialised read becomes an
// explicit symbolic value instead of a silent zero.
func insertInits(fn *rreil.Function, globals *Globals) {
	if len(globals.Vars) == 0 {
		return
	}
	vars := sortedVars(globals.Vars)

	entry := &fn.Blocks[fn.CFG.Nodes[fn.Entry].Block]
	stmts := make([]rreil.Statement, 0, len(vars))
	for _, v := range vars {
		bits := globals.Width[v]
		stmts = append(stmts, rreil.NewExpression(rreil.Var(v, bits), rreil.NewInitialize(v, bits)))
	}
	entry.PrependSynthetic(rreil.Mnemonic{
		Start: entry.Start, End: entry.Start,
		Opcode: "__init", Statements: stmts,
	})
}

func sortedVars(vars map[rreil.VarName]bool) []rreil.VarName {
	out := make([]rreil.VarName, 0, len(vars))
	for v := range vars {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// phiSlot locates one predecessor's operand within a block's combined
// __phi mnemonic: stmtIndex indexes Statements() of the owning block (the
// __phi mnemonic is always prepended first, so this is also a direct
// index into its own Statements slice), argPos selects which of the
// phi's three operand slots (0=A, 1=B, 2=C).
type phiSlot struct {
	stmtIndex int
	argPos    int
}

// ssaPhis is the result of phi placement: for every block that got at
// least one phi, the combined __phi mnemonic's statements, a per-variable
// slot map telling the renaming pass where to write each predecessor's
// reaching value, and which statements have a same-block "chain" operand
// (see buildPhiChain) that renaming must resolve like an ordinary read.
type ssaPhis struct {
	stmts      map[rreil.CFGNodeID][]rreil.Statement
	slots      map[rreil.CFGNodeID]map[rreil.VarName][]phiSlot
	chainLinks map[rreil.CFGNodeID]map[int]bool // stmtIndex -> true: argPos 0 is a same-block chain read
}

// insertPhis runs the classic semi-pruned placement (Cooper & Torczon):
// for every global variable, seed a worklist with its definition blocks
// and flood through the dominance frontier, placing (at most) one phi per
// (block, variable) pair.
func insertPhis(fn *rreil.Function, df map[rreil.CFGNodeID][]rreil.CFGNodeID, globals *Globals) *ssaPhis {
	out := &ssaPhis{
		stmts:      map[rreil.CFGNodeID][]rreil.Statement{},
		slots:      map[rreil.CFGNodeID]map[rreil.VarName][]phiSlot{},
		chainLinks: map[rreil.CFGNodeID]map[int]bool{},
	}
	hasPhi := map[rreil.CFGNodeID]map[rreil.VarName]bool{}

	for _, v := range sortedVars(globals.Vars) {
		bits := globals.Width[v]
		worklist := append([]rreil.CFGNodeID(nil), globals.DefBlocks[v]...)
		queued := map[rreil.CFGNodeID]bool{}
		for _, b := range worklist {
			queued[b] = true
		}
		for len(worklist) > 0 {
			b := worklist[0]
			worklist = worklist[1:]
			for _, d := range df[b] {
				if fn.CFG.Nodes[d].Kind != rreil.NodeBasicBlock {
					continue
				}
				if hasPhi[d] != nil && hasPhi[d][v] {
					continue
				}
				if hasPhi[d] == nil {
					hasPhi[d] = map[rreil.VarName]bool{}
				}
				hasPhi[d][v] = true

				n := len(fn.CFG.Predecessors(d))
				stmts := out.stmts[d]
				if out.chainLinks[d] == nil {
					out.chainLinks[d] = map[int]bool{}
				}
				slots := buildPhiChain(v, bits, n, &stmts, out.chainLinks[d])
				out.stmts[d] = stmts

				if out.slots[d] == nil {
					out.slots[d] = map[rreil.VarName][]phiSlot{}
				}
				out.slots[d][v] = slots

				if !queued[d] {
					worklist = append(worklist, d)
					queued[d] = true
				}
			}
		}
	}

	for d, stmts := range out.stmts {
		blk := &fn.Blocks[fn.CFG.Nodes[d].Block]
		blk.PrependSynthetic(rreil.Mnemonic{
			Start: blk.Start, End: blk.Start,
			Opcode: "__phi", Statements: stmts,
		})
	}
	return out
}

// buildPhiChain appends to *stmts the phi statement(s) merging n inbound
// definitions of (name, bits), chaining through 3-argument phi nodes when n > 3
// ("chained phi" requirement): the first statement consumes up to 3
// predecessors directly; each further statement re-reads the previous
// statement's result in operand A (recorded in chainLinks so renaming resolves
// it like a normal same-block read) and consumes up to 2 more predecessors in B
// and C. Every statement defines the same (unsubscripted) variable name -
// renaming assigns each its own fresh subscript in statement order, which is
// exactly what lets the next statement's A-read pick up the prior one's result
// with no synthetic temporary needed. Phi operands start Undefined regardless
// of whether they denote "no predecessor in this slot" or "a predecessor whose
// value isn't known yet" - both cases are filled in later, either never
// (padding) or by rename's predecessor-edge pass. Because Undefined's width is
// 0, this builds the Statement directly rather than through
// NewExpression/NewPhi (which would reject a result/operation width mismatch
// against the placeholder).
func buildPhiChain(name rreil.VarName, bits rreil.Width, n int, stmts *[]rreil.Statement, chainLinks map[int]bool) []phiSlot {
	slots := make([]phiSlot, n)
	und := rreil.Undefined()
	result := rreil.Var(name, bits)

	take := n
	if take > 3 {
		take = 3
	}
	a, b, c := und, und, und
	stmtIdx := len(*stmts)
	for i := 0; i < take; i++ {
		slots[i] = phiSlot{stmtIndex: stmtIdx, argPos: i}
	}
	*stmts = append(*stmts, newPhiStatement(result, bits, a, b, c))
	consumed := take

	for consumed < n {
		remaining := n - consumed
		take2 := remaining
		if take2 > 2 {
			take2 = 2
		}
		stmtIdx = len(*stmts)
		chainLinks[stmtIdx] = true

		bArg, cArg := und, und
		if take2 >= 1 {
			slots[consumed] = phiSlot{stmtIndex: stmtIdx, argPos: 1}
		}
		if take2 >= 2 {
			slots[consumed+1] = phiSlot{stmtIndex: stmtIdx, argPos: 2}
		}
		*stmts = append(*stmts, newPhiStatement(result, bits, result, bArg, cArg))
		consumed += take2
	}
	return slots
}

func newPhiStatement(result rreil.Value, bits rreil.Width, a, b, c rreil.Value) rreil.Statement {
	return rreil.Statement{
		Kind:   rreil.StmtExpression,
		Result: result,
		Op:     rreil.Operation{Opcode: rreil.OpPhi, Bits: bits, A: a, B: b, C: c},
	}
}

// rename walks fn's dominator tree (Cytron et al.'s renaming pass),
// maintaining one version stack per variable. Each Expression statement's
// reads are rewritten to the current top-of-stack version before the
// statement's own result pushes a fresh one; on leaving a node's
// subtree, every version it pushed is popped again.
//
// Phi statements are handled specially: only a "chain link" operand
// (buildPhiChain's same-block accumulator, argPos A) is resolved as an
// ordinary read here. The other operand slots are reaching-definition
// values from specific CFG predecessors and are filled in the separate
// pass below, when that predecessor node is visited.
func rename(fn *rreil.Function, dom *Dominators, phis *ssaPhis, globals *Globals) {
	counter := map[rreil.VarName]int32{}
	stacks := map[rreil.VarName][]rreil.Subscript{}

	push := func(v rreil.VarName) rreil.Subscript {
		s := rreil.Subscript(counter[v])
		counter[v]++
		stacks[v] = append(stacks[v], s)
		return s
	}
	top := func(v rreil.VarName) (rreil.Subscript, bool) {
		st := stacks[v]
		if len(st) == 0 {
			return rreil.NoSubscript, false
		}
		return st[len(st)-1], true
	}
	pop := func(v rreil.VarName) {
		st := stacks[v]
		stacks[v] = st[:len(st)-1]
	}

	order := dom.ReversePostorder()
	rank := make(map[rreil.CFGNodeID]int, len(order))
	for i, n := range order {
		rank[n] = i
	}
	children := map[rreil.CFGNodeID][]rreil.CFGNodeID{}
	for _, n := range order {
		if n == fn.Entry {
			continue
		}
		p, ok := dom.ImmediateDominator(n)
		if ok && p != n {
			children[p] = append(children[p], n)
		}
	}
	for p, kids := range children {
		for i := 1; i < len(kids); i++ {
			for j := i; j > 0 && rank[kids[j-1]] > rank[kids[j]]; j-- {
				kids[j-1], kids[j] = kids[j], kids[j-1]
			}
		}
		children[p] = kids
	}

	var walk func(node rreil.CFGNodeID)
	walk = func(node rreil.CFGNodeID) {
		pushed := map[rreil.VarName]int{}

		if fn.CFG.Nodes[node].Kind == rreil.NodeBasicBlock {
			blk := &fn.Blocks[fn.CFG.Nodes[node].Block]
			links := phis.chainLinks[node]
			for stmtIdx, stmt := range blk.Statements() {
				isPhi := stmt.Kind == rreil.StmtExpression && stmt.Op.Opcode == rreil.OpPhi
				switch {
				case isPhi && links[stmtIdx]:
					if name, ok := stmt.Op.A.VariableName(); ok {
						if sub, ok := top(name); ok {
							stmt.Op.A = stmt.Op.A.WithSubscript(sub)
						}
					}
				case !isPhi:
					reads := stmt.Reads()
					newReads := make([]rreil.Value, len(reads))
					for i, r := range reads {
						if name, ok := r.VariableName(); ok {
							if sub, ok := top(name); ok {
								newReads[i] = r.WithSubscript(sub)
								continue
							}
						}
						newReads[i] = r
					}
					stmt.RewriteReads(newReads)
				}

				if def, ok := stmt.DefinedValue(); ok {
					if name, ok := def.VariableName(); ok {
						sub := push(name)
						pushed[name]++
						stmt.Result = def.WithSubscript(sub)
					}
				}
			}
		}

		for _, e := range fn.CFG.Successors(node) {
			succSlots := phis.slots[e.To]
			if succSlots == nil {
				continue
			}
			preds := fn.CFG.Predecessors(e.To)
			predIdx := -1
			for i, pe := range preds {
				if pe.From == node && pe.Guard == e.Guard {
					predIdx = i
					break
				}
			}
			if predIdx < 0 {
				continue
			}
			succBlk := &fn.Blocks[fn.CFG.Nodes[e.To].Block]
			phiMn, ok := succBlk.LeadingSynthetic("__phi")
			if !ok {
				continue
			}
			for v, slots := range succSlots {
				slot := slots[predIdx]
				var val rreil.Value
				if sub, ok := top(v); ok {
					val = rreil.VarSub(v, globals.Width[v], sub)
				} else {
					val = rreil.Undefined()
				}
				switch slot.argPos {
				case 0:
					phiMn.Statements[slot.stmtIndex].Op.A = val
				case 1:
					phiMn.Statements[slot.stmtIndex].Op.B = val
				case 2:
					phiMn.Statements[slot.stmtIndex].Op.C = val
				}
			}
		}

		for _, c := range children[node] {
			walk(c)
		}

		for v, n := range pushed {
			for i := 0; i < n; i++ {
				pop(v)
			}
		}
	}

	walk(fn.Entry)
}
