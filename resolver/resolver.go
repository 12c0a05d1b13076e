// Package resolver implements the indirect-jump resolver: it drives the
// function builder's extend/reanalyse loop, feeding each round's SSA form
// through the abstract-interpretation engine and turning any UnresolvedTarget
// node whose guarding value now enumerates a finite set of concrete addresses
// into real edges. dataflow.ConstructSSA deliberately never rewrites
// CFGNode.Target, so this package recovers the live SSA name locally: since
// the function builder gives every UnresolvedTarget node exactly one
// predecessor edge, the guarding variable's live SSA name is just its last
// definition in that one predecessor
// block. A variable that no statement reads gets no phi, so that block may
// hold no definition of it; the resolver then combines every definition of
// the variable in the function instead.
package resolver

import (
	"github.com/das-labor/panopticon-sub002/absint"
	"github.com/das-labor/panopticon-sub002/dataflow"
	"github.com/das-labor/panopticon-sub002/function"
	"github.com/das-labor/panopticon-sub002/rreil"
	"go.uber.org/zap"
)

// Enumerate extracts the finite set of concrete addresses a post-
// fixpoint abstract value represents, or reports that it doesn't
// resolve to one (Join, an unbounded region, Meet). absint/kset and
// absint/bat each supply a concrete Enumerate of this shape.
type Enumerate[V absint.Value[V]] func(V) ([]uint64, bool)

// Option configures Resolve (ambient logging stack: "... and the resolver's
// iterate-to-convergence loop").
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger attaches log; Resolve logs one Info line per round giving
// how many UnresolvedTarget nodes it retired that round. Without this
// option Resolve logs nothing.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// Resolve repeatedly reanalyses b's function and attempts to convert every
// pending UnresolvedTarget node into concrete CFG edges, until a full pass
// makes no further progress. Termination is guaranteed by the domain itself,
// not by a round counter here: every resolved target either retires a node for
// good or the domain's version/cardinality bound forces its governing value to
// Join, which never re-enumerates.
func Resolve[C any, V absint.Value[V]](b *function.Builder[C], domain absint.Domain[V], enumerate Enumerate[V], opts ...Option) error {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	for round := 0; ; round++ {
		fn := b.Function()
		dom, err := dataflow.ConstructSSA(fn)
		if err != nil {
			return err
		}

		eng := absint.New[V](domain)
		values, err := eng.Approximate(fn, dom, nil)
		if err != nil {
			return err
		}

		resolved := 0
		for _, node := range append([]rreil.CFGNodeID(nil), b.Unresolved()...) {
			addrs, ok := resolveOne(fn, node, values, enumerate)
			if !ok {
				continue
			}
			for _, addr := range addrs {
				b.Extend(addr)
			}
			rewire(fn, node, addrs)
			b.ClearUnresolved(node)
			resolved++
		}
		o.log.Info("resolver round complete", zap.Int("round", round), zap.Int("resolved", resolved),
			zap.Int("remaining", len(b.Unresolved())))

		if resolved == 0 {
			return nil
		}
	}
}

// resolveOne attempts to resolve one UnresolvedTarget node: it finds the
// SSA name last assigned to the node's guarding variable in its sole
// predecessor block, looks up that name's post-fixpoint abstract value,
// and asks enumerate whether it names a finite address set. When that
// block holds no definition of the variable, the value used is the
// Combine of all its definitions in the function (absint.Summarize).
func resolveOne[V absint.Value[V]](fn *rreil.Function, node rreil.CFGNodeID, values map[absint.SSAKey]V, enumerate Enumerate[V]) ([]uint64, bool) {
	n := fn.CFG.Nodes[node]
	name, ok := n.Target.VariableName()
	if !ok {
		return nil, false
	}

	preds := fn.CFG.Predecessors(node)
	if len(preds) != 1 {
		return nil, false
	}
	pred := fn.CFG.Nodes[preds[0].From]
	if pred.Kind != rreil.NodeBasicBlock {
		return nil, false
	}

	sub, found := lastDefinition(&fn.Blocks[pred.Block], name)
	if !found {
		summary, ok := absint.Summarize(values)[name]
		if !ok {
			return nil, false
		}
		return enumerate(summary)
	}

	val, ok := values[absint.SSAKey{Name: name, Subscript: sub}]
	if !ok {
		return nil, false
	}
	return enumerate(val)
}

// lastDefinition scans blk's statements in order and returns the
// subscript of the last Expression whose result is name, mirroring
// rename_variables' single running per-name stack entry.
func lastDefinition(blk *rreil.BasicBlock, name rreil.VarName) (rreil.Subscript, bool) {
	sub := rreil.NoSubscript
	found := false
	for _, stmt := range blk.Statements() {
		if stmt.Kind != rreil.StmtExpression {
			continue
		}
		if resultName, ok := stmt.Result.VariableName(); ok && resultName == name {
			sub, _ = stmt.Result.VariableSubscript()
			found = true
		}
	}
	return sub, found
}

// rewire retires node's sole incoming edge and replaces it with direct
// edges from that same predecessor to the concrete block each address in
// addrs now resolves to (the corresponding blocks are guaranteed to
// exist: Resolve calls b.Extend for every address before calling
// rewire). node itself is left in the CFG, unreachable, per
// CFG.ReplaceNode's doc comment on why UnresolvedTarget nodes are
// bypassed rather than deleted.
func rewire(fn *rreil.Function, node rreil.CFGNodeID, addrs []uint64) {
	preds := fn.CFG.Predecessors(node)
	fn.CFG.RemoveEdgesTo(node)
	for _, addr := range addrs {
		target, ok := nodeForAddress(fn, addr)
		if !ok {
			continue
		}
		for _, pe := range preds {
			fn.CFG.AddEdge(pe.From, target, pe.Guard)
		}
	}
}

func nodeForAddress(fn *rreil.Function, addr uint64) (rreil.CFGNodeID, bool) {
	for i, blk := range fn.Blocks {
		if blk.Start == addr {
			return fn.BlockNode(i)
		}
	}
	return 0, false
}
