// Package function implements the worklist-driven function builder: it grows
// basic blocks mnemonic by mnemonic from a decoder driver, splitting a block
// retroactively whenever a newly-discovered edge targets an address inside it,
// and aggregates non-fatal decode failures instead of aborting the whole build.
// The worklist is a simple push/pop queue of pending addresses.
package function

import (
	"fmt"

	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/rreil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder grows a single rreil.Function from a worklist of addresses.
// Not safe for concurrent use; the registry package runs one Builder per
// function, concurrently, behind its own worker pool.
type Builder[C any] struct {
	driver *arch.Driver[C]
	region arch.Region
	fn     *rreil.Function

	worklist []uint64
	queued   map[uint64]bool

	nodeForAddr map[uint64]rreil.CFGNodeID // address -> node owning the block that STARTS there
	pending     map[uint64][]pendingEdge   // target address -> edges waiting on that block to exist

	unresolved []rreil.CFGNodeID // UnresolvedTarget nodes, for resolver to pick up

	errs error // non-fatal DecodeErrors, aggregated via multierr
	log  *zap.Logger
}

type pendingEdge struct {
	from  rreil.CFGNodeID
	guard rreil.Guard
}

// Option configures a Builder at construction (ambient logging stack:
// "recoverable DecodeErrors are... logged via go.uber.org/zap at the call site
// that drives the worklist").
type Option[C any] func(*Builder[C])

// WithLogger attaches log; every recoverable DecodeError the worklist
// hits is logged at Warn level through it. Without this option, Build
// logs nothing (a zap.NewNop logger), matching the package's existing
// "DecodeError is recoverable and silent by default" contract.
func WithLogger[C any](log *zap.Logger) Option[C] {
	return func(b *Builder[C]) { b.log = log }
}

// New creates a Builder for a function named name, decoding from region
// via the given architecture.
func New[C any](name string, a arch.Architecture[C], region arch.Region, opts ...Option[C]) *Builder[C] {
	b := &Builder[C]{
		driver:      arch.NewDriver(a, region),
		region:      region,
		fn:          rreil.NewFunction(name),
		queued:      map[uint64]bool{},
		nodeForAddr: map[uint64]rreil.CFGNodeID{},
		pending:     map[uint64][]pendingEdge{},
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the worklist to completion starting from entry and returns
// the resulting Function. Returns ErrEmptyRegion (fatal) if the entry
// address itself can't be read; mid-function decode failures are
// recorded as FailedDecode nodes and returned aggregated (via
// go.uber.org/multierr) alongside the otherwise-complete Function, not
// in place of it.
func (b *Builder[C]) Build(entry uint64) (*rreil.Function, error) {
	if _, err := b.region.Read(entry, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", rreil.ErrEmptyRegion, err)
	}

	b.worklist = append(b.worklist, entry)
	b.queued[entry] = true
	for len(b.worklist) > 0 {
		addr := b.worklist[0]
		b.worklist = b.worklist[1:]
		b.extend(addr)
	}

	entryNode, ok := b.nodeForAddr[entry]
	if !ok {
		return nil, fmt.Errorf("%w: entry address 0x%x never resolved to a block", rreil.ErrEmptyRegion, entry)
	}
	b.fn.Entry = entryNode

	if err := b.fn.CheckInvariants(); err != nil {
		return nil, err
	}
	return b.fn, b.errs
}

// Unresolved returns the UnresolvedTarget nodes accumulated so far, for the
// resolver to attempt to convert into concrete edges.
func (b *Builder[C]) Unresolved() []rreil.CFGNodeID {
	return b.unresolved
}

// Function returns the Function under construction, for the resolver to read
// blocks/CFG from and rewire directly between rounds of its extend-reanalyse-
// resolve loop. The returned Function shares storage with b; callers other than
// the resolver should treat it as read-only until Build returns.
func (b *Builder[C]) Function() *rreil.Function {
	return b.fn
}

// ClearUnresolved drops node from the builder's pending-unresolved list,
// once the resolver has rewired its sole incoming edge to concrete
// successors. The node's handle itself stays valid (other code may still
// reference it by id) but is no longer offered up for another resolution
// attempt.
func (b *Builder[C]) ClearUnresolved(node rreil.CFGNodeID) {
	kept := b.unresolved[:0]
	for _, n := range b.unresolved {
		if n != node {
			kept = append(kept, n)
		}
	}
	b.unresolved = kept
}

// Extend grows the function from a single additional address — the entry point
// for the resolver's incremental-extension feedback loop: once an
// UnresolvedTarget node is resolved to a concrete address, the resolver calls
// Extend directly instead of re-running Build.
func (b *Builder[C]) Extend(addr uint64) {
	if b.queued[addr] {
		return
	}
	b.queued[addr] = true
	b.extend(addr)
}

// extend grows one block starting at addr, or splits an existing block
// if addr already lies strictly inside one.
func (b *Builder[C]) extend(addr uint64) {
	if _, already := b.nodeForAddr[addr]; already {
		return
	}
	if owner, ok := b.findContaining(addr); ok {
		b.splitBlockAt(owner, addr)
		return
	}

	var mnemonics []rreil.Mnemonic
	cur := addr
	for {
		match, err := b.driver.Step(cur)
		if err != nil {
			b.errs = multierr.Append(b.errs, err)
			b.finishFailedDecode(addr, mnemonics, cur, err)
			return
		}
		mnemonics = append(mnemonics, match.Mnemonics...)
		cur += match.Consumed

		if !b.fallsThroughTo(match.Jumps, cur) {
			b.finishBlock(addr, cur, mnemonics, match.Jumps)
			return
		}
		// A single unconditional edge to the very next address: keep
		// growing the block, unless that address is already spoken for
		// by another block (in which case stop and let wireJump link to
		// it, splitting if necessary).
		if _, already := b.nodeForAddr[cur]; already {
			b.finishBlock(addr, cur, mnemonics, match.Jumps)
			return
		}
		if _, mid := b.findContaining(cur); mid {
			b.finishBlock(addr, cur, mnemonics, match.Jumps)
			return
		}
	}
}

// fallsThroughTo reports whether jumps is exactly the single
// always-taken edge to next — the condition under which the growing
// block keeps accumulating mnemonics instead of terminating.
func (b *Builder[C]) fallsThroughTo(jumps []arch.Jump, next uint64) bool {
	if len(jumps) != 1 || jumps[0].Guard != rreil.Always() {
		return false
	}
	v, ok := jumps[0].Target.ConstantValue()
	return ok && v == next
}

func (b *Builder[C]) finishBlock(start, end uint64, mnemonics []rreil.Mnemonic, jumps []arch.Jump) {
	blockIdx := len(b.fn.Blocks)
	b.fn.Blocks = append(b.fn.Blocks, rreil.BasicBlock{Start: start, End: end, Mnemonics: mnemonics})
	node := b.fn.CFG.AddNode(rreil.CFGNode{Kind: rreil.NodeBasicBlock, Block: blockIdx})
	b.nodeForAddr[start] = node

	for _, pe := range b.pending[start] {
		b.fn.CFG.AddEdge(pe.from, node, pe.guard)
	}
	delete(b.pending, start)

	from := node
	for _, j := range jumps {
		from = b.wireJump(from, j)
	}
}

// finishFailedDecode records a FailedDecode sink node for an address the driver
// could not decode, wiring in any edges that were waiting on it so the rest of
// the CFG stays consistent (: DecodeError is recoverable — it attaches a
// FailedDecode node and does not abort the enclosing build).
func (b *Builder[C]) finishFailedDecode(start uint64, partial []rreil.Mnemonic, failedAt uint64, cause error) {
	b.log.Warn("decode failed", zap.Uint64("address", failedAt), zap.Error(cause))
	if len(partial) > 0 {
		// Some mnemonics decoded before the failure: keep them as their
		// own block, falling through to the FailedDecode sink.
		b.finishBlock(start, failedAt, partial, []arch.Jump{{Target: rreil.Const(failedAt, arch.AddressWidth), Guard: rreil.Always()}})
		return
	}
	node := b.fn.CFG.AddNode(rreil.CFGNode{Kind: rreil.NodeFailedDecode, Address: failedAt, Reason: cause.Error()})
	for _, pe := range b.pending[failedAt] {
		b.fn.CFG.AddEdge(pe.from, node, pe.guard)
	}
	delete(b.pending, failedAt)
	b.nodeForAddr[failedAt] = node
}

// wireJump records j's edge out of from and returns the node that holds
// from's last mnemonic afterwards: from itself, or the new tail when j
// targets the middle of from's own block and splits it.
func (b *Builder[C]) wireJump(from rreil.CFGNodeID, j arch.Jump) rreil.CFGNodeID {
	target, isConst := j.Target.ConstantValue()
	if !isConst {
		node := b.fn.CFG.AddNode(rreil.CFGNode{Kind: rreil.NodeUnresolvedTarget, Target: j.Target})
		b.fn.CFG.AddEdge(from, node, j.Guard)
		b.unresolved = append(b.unresolved, node)
		return from
	}

	if node, ok := b.nodeForAddr[target]; ok {
		b.fn.CFG.AddEdge(from, node, j.Guard)
		return from
	}
	if owner, ok := b.findContaining(target); ok {
		newNode := b.splitBlockAt(owner, target)
		if owner == from && b.fn.CFG.Nodes[newNode].Kind == rreil.NodeBasicBlock {
			from = newNode
		}
		b.fn.CFG.AddEdge(from, newNode, j.Guard)
		return from
	}

	b.pending[target] = append(b.pending[target], pendingEdge{from: from, guard: j.Guard})
	if !b.queued[target] {
		b.worklist = append(b.worklist, target)
		b.queued[target] = true
	}
	return from
}

// findContaining returns the node owning the BasicBlock whose [Start,
// End) strictly contains addr (addr != Start; an exact-Start match is
// handled by nodeForAddr directly).
func (b *Builder[C]) findContaining(addr uint64) (rreil.CFGNodeID, bool) {
	for id, n := range b.fn.CFG.Nodes {
		if n.Kind != rreil.NodeBasicBlock {
			continue
		}
		blk := &b.fn.Blocks[n.Block]
		if blk.Start < addr && addr < blk.End {
			return rreil.CFGNodeID(id), true
		}
	}
	return 0, false
}

// splitBlockAt splits the block owned by owner at address at, which must fall
// on a mnemonic boundary inside it. The head keeps [Start, at); a new tail
// block [at, End) is created, the head's former outgoing edges move to the
// tail, and a single unconditional edge links head -> tail. Returns the tail's
// node. This single mechanism also covers the "entry overlaps an already-built
// block" edge case: the entry address's own node id never changes (only the
// tail gets a fresh one), so Function.Entry stays valid across any number of
// retroactive splits triggered by later worklist items.
func (b *Builder[C]) splitBlockAt(owner rreil.CFGNodeID, at uint64) rreil.CFGNodeID {
	ownerNode := b.fn.CFG.Nodes[owner]
	blk := &b.fn.Blocks[ownerNode.Block]

	splitIdx := -1
	for i, m := range blk.Mnemonics {
		if m.Start == at {
			splitIdx = i
			break
		}
	}
	if splitIdx < 0 {
		// at doesn't land on a mnemonic boundary: treat as a decode
		// failure rather than silently truncating mid-instruction.
		node := b.fn.CFG.AddNode(rreil.CFGNode{Kind: rreil.NodeFailedDecode, Address: at,
			Reason: "split target does not fall on a mnemonic boundary"})
		b.nodeForAddr[at] = node
		return node
	}

	tailMnemonics := append([]rreil.Mnemonic(nil), blk.Mnemonics[splitIdx:]...)
	oldEnd := blk.End
	blk.Mnemonics = blk.Mnemonics[:splitIdx]
	blk.End = at

	tailIdx := len(b.fn.Blocks)
	b.fn.Blocks = append(b.fn.Blocks, rreil.BasicBlock{Start: at, End: oldEnd, Mnemonics: tailMnemonics})
	tailNode := b.fn.CFG.AddNode(rreil.CFGNode{Kind: rreil.NodeBasicBlock, Block: tailIdx})

	for _, e := range b.fn.CFG.Successors(owner) {
		b.fn.CFG.AddEdge(tailNode, e.To, e.Guard)
	}
	b.fn.CFG.RemoveEdgesFrom(owner)
	b.fn.CFG.AddEdge(owner, tailNode, rreil.Always())

	b.nodeForAddr[at] = tailNode
	for _, pe := range b.pending[at] {
		b.fn.CFG.AddEdge(pe.from, tailNode, pe.guard)
	}
	delete(b.pending, at)

	return tailNode
}
