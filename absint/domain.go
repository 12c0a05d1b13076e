// Package absint implements the generic abstract-interpretation fixpoint: a
// reverse-postorder worklist over an SSA rreil.Function, parameterised over any
// lattice satisfying the Value contract below. Concrete domains (K-set, BAT)
// live in absint/kset and absint/bat; this package never imports either. The
// fixpoint propagates through phi as a join and re-runs until no value
// changes, walking blocks via dataflow.Dominators.ReversePostorder rather than
// a second traversal.
package absint

import "github.com/das-labor/panopticon-sub002/rreil"

// Value is the lattice element a concrete abstract domain manipulates.
// Every method is total: a domain must define combine/narrow/widen/
// more_exact for every pair of its own values, including its own bottom
// and top.
type Value[V any] interface {
	// Combine computes the least upper bound (join) of v and other —
	// the operator phi nodes use to merge values reaching a block from
	// more than one predecessor.
	Combine(other V) V

	// Narrow computes the greatest lower bound (meet) of v and other.
	// The engine applies this only at a single-predecessor guarded
	// edge, meeting the block's live value of the guard's flag variable
	// against the domain's abstraction of that guard.
	Narrow(other V) V

	// Widen accelerates convergence on a confirmed ascending chain: the
	// engine calls Widen(previous, current) only once it has already
	// established current.MoreExact(previous) holds, never blindly.
	Widen(other V) V

	// MoreExact reports whether v sits strictly above other in the
	// domain's accumulation order: Join is above every other element,
	// Meet below every other element, and a value that has absorbed
	// more (e.g. a larger k-set) is above one that has absorbed less.
	MoreExact(other V) bool

	// Extract bit-slices v to a sub-value of width bits starting at
	// offset, mirroring Select on the concrete side.
	Extract(offset, bits rreil.Width) V
}

// ProgramPoint names one Expression statement: the block it lives in,
// and its index within that block's flattened statement list (as
// BasicBlock.Statements returns them, synthetic mnemonics included).
// Needed by Execute because a domain's treatment of a load, say, can
// depend on which region/address context produced it, not just its
// operand values.
type ProgramPoint struct {
	Node      rreil.CFGNodeID
	Statement int
}

// Domain is the capability set a concrete abstract domain supplies:
// construction from concrete syntax (AbstractValue, AbstractConstraint,
// Initial) plus the one evaluation rule, Execute, that interprets a non-phi
// Operation pointwise over already-abstracted operands. Everything else (join
// at phi, narrow at guard edges, widen on ascent, bit-slicing) is carried on V
// itself (see Value[V]) since it needs no Domain-level context.
type Domain[V Value[V]] interface {
	// Initial returns the domain's bottom element: "nothing executed
	// yet", the seed every SSA name starts at before its first
	// definition is interpreted.
	Initial() V

	// AbstractValue abstracts a concrete rreil.Value (a Constant or
	// Undefined placeholder; Variable operands are resolved by the
	// engine against its running value map before Execute ever sees
	// them, so a domain implementation never has to abstract a bare
	// Variable itself).
	AbstractValue(v rreil.Value) V

	// AbstractConstraint abstracts a CFG edge's Guard into the
	// domain's own lattice, for narrowing at guarded single-predecessor
	// edges.
	AbstractConstraint(g rreil.Guard) V

	// Execute interprets op pointwise, given operands already resolved
	// to abstract values in the same order op.Reads() would report
	// them. Phi is never passed here — the engine handles OpPhi itself
	// via Combine.
	Execute(pp ProgramPoint, op rreil.Operation, operands []V) V
}
