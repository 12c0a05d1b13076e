package absint

import (
	"fmt"

	"github.com/das-labor/panopticon-sub002/dataflow"
	"github.com/das-labor/panopticon-sub002/rreil"
)

// SSAKey identifies one versioned SSA definition: a variable name together with
// the subscript renaming assigned it. This is the engine's map key and the
// shape "Map<(name,subscript), D>" result takes in Go.
type SSAKey struct {
	Name      rreil.VarName
	Subscript rreil.Subscript
}

// Engine runs the generic abstract-interpretation fixpoint over a domain D. It
// holds no per-run state itself; Approximate is safe to call repeatedly (e.g.
// once per candidate resolved target in the resolver's convergence loop,).
type Engine[V Value[V]] struct {
	domain Domain[V]
}

// New builds an Engine driven by domain.
func New[V Value[V]](domain Domain[V]) *Engine[V] {
	return &Engine[V]{domain: domain}
}

// Approximate runs the fixpoint over fn (which must already be in SSA form —
// see dataflow.ConstructSSA) until no tracked value changes, seeding the map
// with seed (e.g. known argument values; nil or empty means "everything starts
// at the domain's bottom"). Iteration order is fn's reverse postorder as
// computed for dominators (dataflow.Dominators.ReversePostorder) — entry
// first, so a variable's single static definition is always interpreted before
// any use reachable from it, for every non-loop-carried name. Loop-carried
// names (reached via a phi whose back-edge operand isn't known on the first
// pass) simply read the domain's bottom on pass one and refine over subsequent
// passes, same as any other worklist fixpoint. Phi statements are handled as
// Combine over their (up to three) resolved operands; an Undefined operand
// slot is skipped rather than resolved, so it contributes the domain's
// bottom (Initial) directly instead of AbstractValue(Undefined), and a
// not-yet-filled or padding slot never influences the join. Every other
// Expression statement is handed to domain.Execute with its reads already
// resolved. A single-
// predecessor block whose incoming edge carries a non-Always, non-Never guard
// narrows that guard's flag variable using a value local to processing that
// block, never by mutating the shared map — see narrowedGuard. Multi-predecessor
// (phi) joins do not get this refinement: Guard on a CFGEdge only ever names
// the flag variable itself, and a flag consumed by more than one predecessor's
// edge would have no single incoming value to narrow against without
// edge-specific state the engine doesn't track.
func (e *Engine[V]) Approximate(fn *rreil.Function, dom *dataflow.Dominators, seed map[SSAKey]V) (map[SSAKey]V, error) {
	values := map[SSAKey]V{}
	for k, v := range seed {
		values[k] = v
	}

	order := dom.ReversePostorder()

	resolve := func(local map[SSAKey]V, v rreil.Value) V {
		name, ok := v.VariableName()
		if !ok {
			return e.domain.AbstractValue(v)
		}
		sub, _ := v.VariableSubscript()
		key := SSAKey{Name: name, Subscript: sub}
		if val, ok := local[key]; ok {
			return val
		}
		if val, ok := values[key]; ok {
			return val
		}
		return e.domain.Initial()
	}

	for changed := true; changed; {
		changed = false
		for _, node := range order {
			n := fn.CFG.Nodes[node]
			if n.Kind != rreil.NodeBasicBlock {
				continue
			}
			local := e.narrowedGuard(fn, node, values)
			blk := &fn.Blocks[n.Block]

			for stmtIdx, stmt := range blk.Statements() {
				if stmt.Kind != rreil.StmtExpression {
					continue
				}
				resultName, ok := stmt.Result.VariableName()
				if !ok {
					continue
				}
				sub, _ := stmt.Result.VariableSubscript()
				key := SSAKey{Name: resultName, Subscript: sub}

				var computed V
				if stmt.Op.Opcode == rreil.OpPhi {
					computed = e.combinePhi(local, resolve, stmt.Op)
				} else {
					reads := stmt.Op.Reads()
					operands := make([]V, len(reads))
					for i, r := range reads {
						operands[i] = resolve(local, r)
					}
					computed = e.domain.Execute(ProgramPoint{Node: node, Statement: stmtIdx}, stmt.Op, operands)
				}

				updated, did, err := e.merge(values, key, computed)
				if err != nil {
					return nil, err
				}
				if did {
					values[key] = updated
					changed = true
				}
			}
		}
	}
	return values, nil
}

// merge folds a freshly computed value into the running estimate at key. The
// first time a key is seen, the computed value is adopted directly — there is
// no prior estimate to widen against. On every later recomputation, widening
// only fires once computed.MoreExact(prev) confirms computed sits strictly
// above the stored value; any other recomputation is a no-op, consistent with
// the monotone frameworks every domain here implements.
func (e *Engine[V]) merge(values map[SSAKey]V, key SSAKey, computed V) (V, bool, error) {
	prev, existed := values[key]
	if !existed {
		return computed, true, nil
	}
	if !computed.MoreExact(prev) {
		var zero V
		return zero, false, nil
	}
	widened := prev.Widen(computed)
	if prev.MoreExact(widened) || computed.MoreExact(widened) {
		return widened, false, fmt.Errorf("%w: widen(%v, %v) produced a result more exact than an input",
			rreil.ErrDomainContract, prev, computed)
	}
	return widened, true, nil
}

// combinePhi joins a Phi operation's (up to three) operands. Each
// non-Undefined operand is resolved through local so a same-block
// chain-link read (dataflow's buildPhiChain accumulator) sees the
// chain's running value. An Undefined operand is the padding slot
// buildPhiChain leaves on phis with fewer than three predecessors (or
// an as-yet-unfilled slot on an earlier fixpoint pass); it stands for
// "no value on this edge yet" and abstracts to the domain's bottom, not
// to AbstractValue(Undefined) (which both concrete domains map to
// Join), so it is skipped here rather than resolved and combined.
func (e *Engine[V]) combinePhi(local map[SSAKey]V, resolve func(map[SSAKey]V, rreil.Value) V, op rreil.Operation) V {
	acc := e.domain.Initial()
	first := true
	for _, arg := range [...]rreil.Value{op.A, op.B, op.C} {
		if arg.IsUndefined() {
			continue
		}
		v := resolve(local, arg)
		if first {
			acc = v
			first = false
		} else {
			acc = acc.Combine(v)
		}
	}
	return acc
}

// narrowedGuard builds the per-block local override map used by resolve:
// when node has exactly one predecessor and that edge's guard names a
// flag variable, the flag's globally stored value is narrowed against
// the domain's abstraction of the guard, and that narrowed value (not
// the raw stored one) is what this block's statements observe. Returning
// a *local* map rather than writing into the shared values map is what
// keeps this sound: a flag narrowed on one predecessor's edge must never
// bleed into a sibling block reached by a different edge over the same
// flag.
func (e *Engine[V]) narrowedGuard(fn *rreil.Function, node rreil.CFGNodeID, values map[SSAKey]V) map[SSAKey]V {
	preds := fn.CFG.Predecessors(node)
	if len(preds) != 1 {
		return nil
	}
	g := preds[0].Guard
	if g.Polarity != rreil.GuardFlagTrue && g.Polarity != rreil.GuardFlagFalse {
		return nil
	}
	name, ok := g.Flag.VariableName()
	if !ok {
		return nil
	}
	sub, _ := g.Flag.VariableSubscript()
	if sub == rreil.NoSubscript {
		// Guard flags are not SSA-renamed: use the subscript of the
		// flag's last definition in the (basic-block) predecessor.
		from := fn.CFG.Nodes[preds[0].From]
		if from.Kind != rreil.NodeBasicBlock {
			return nil
		}
		for _, s := range fn.Blocks[from.Block].Statements() {
			if n, ok := s.Result.VariableName(); ok && s.Kind == rreil.StmtExpression && n == name {
				sub, _ = s.Result.VariableSubscript()
			}
		}
	}
	key := SSAKey{Name: name, Subscript: sub}
	stored, ok := values[key]
	if !ok {
		return nil
	}
	return map[SSAKey]V{key: stored.Narrow(e.domain.AbstractConstraint(g))}
}

// Summarize folds every tracked subscript of each variable name down to one
// value via repeated Combine. This is the per-name view the resolver and any
// external caller actually want; Approximate's raw per-(name,subscript) map is
// the engine's internal working state.
func Summarize[V Value[V]](values map[SSAKey]V) map[rreil.VarName]V {
	out := map[rreil.VarName]V{}
	for k, v := range values {
		if cur, ok := out[k.Name]; ok {
			out[k.Name] = cur.Combine(v)
		} else {
			out[k.Name] = v
		}
	}
	return out
}
