package rreil

import (
	"fmt"

	"github.com/google/uuid"
)

// Function is a CFG, a single entry-point block index, a display name, and a
// stable UUID. Invariants: every BasicBlock is reachable from the entry;
// exactly one node is the entry; the union of block ranges is disjoint.
type Function struct {
	ID     uuid.UUID
	Name   string
	Blocks []BasicBlock
	CFG    CFG
	Entry  CFGNodeID
}

// NewFunction allocates an empty Function with a fresh UUID and the
// given display name. Callers (the function builder) populate
// Blocks/CFG/Entry as decoding proceeds.
func NewFunction(name string) *Function {
	return &Function{ID: uuid.New(), Name: name}
}

// EntryBlock returns the BasicBlock at the entry node. Panics if the
// entry node is not a BasicBlock node, which would mean the Function was
// built incorrectly.
func (f *Function) EntryBlock() *BasicBlock {
	n := f.CFG.Nodes[f.Entry]
	if n.Kind != NodeBasicBlock {
		panic("rreil: Function entry is not a BasicBlock node")
	}
	return &f.Blocks[n.Block]
}

// BlockNode returns the CFGNodeID of the node that owns Blocks[i], or
// false if no such node exists (this should not happen for a
// consistently built Function, but callers validating invariants want to
// detect it rather than panic).
func (f *Function) BlockNode(blockIndex int) (CFGNodeID, bool) {
	for id, n := range f.CFG.Nodes {
		if n.Kind == NodeBasicBlock && n.Block == blockIndex {
			return CFGNodeID(id), true
		}
	}
	return 0, false
}

// BasicBlocks iterates the function's basic blocks together with their owning
// node id, in Blocks order — "disassembly order": blocks are created in the
// order their entry address is first visited.
func (f *Function) BasicBlocks() []struct {
	Node  CFGNodeID
	Block *BasicBlock
} {
	out := make([]struct {
		Node  CFGNodeID
		Block *BasicBlock
	}, 0, len(f.Blocks))
	for id, n := range f.CFG.Nodes {
		if n.Kind != NodeBasicBlock {
			continue
		}
		out = append(out, struct {
			Node  CFGNodeID
			Block *BasicBlock
		}{CFGNodeID(id), &f.Blocks[n.Block]})
	}
	return out
}

// CheckInvariants validates the structural invariants a well-formed Function
// must hold: disjoint block ranges, a single entry, every block reachable
// from the entry.
// Returns ErrUnreachableBlock wrapped with the offending block's range if
// reachability fails.
func (f *Function) CheckInvariants() error {
	if f.CFG.Nodes[f.Entry].Kind != NodeBasicBlock {
		return fmt.Errorf("rreil: entry node %d is not a BasicBlock", f.Entry)
	}

	// Disjoint ranges.
	type span struct{ start, end uint64 }
	spans := make([]span, 0, len(f.Blocks))
	for _, b := range f.Blocks {
		spans = append(spans, span{b.Start, b.End})
	}
	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				return fmt.Errorf("rreil: blocks [0x%x,0x%x) and [0x%x,0x%x) overlap",
					spans[i].start, spans[i].end, spans[j].start, spans[j].end)
			}
		}
	}

	// Reachability from entry, over BasicBlock nodes only (Unresolved/
	// FailedDecode nodes are sinks with no further successors that
	// matter for this check).
	visited := make(map[CFGNodeID]bool)
	stack := []CFGNodeID{f.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, e := range f.CFG.Successors(n) {
			if !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	for id, n := range f.CFG.Nodes {
		if n.Kind == NodeBasicBlock && !visited[CFGNodeID(id)] {
			b := f.Blocks[n.Block]
			return fmt.Errorf("%w: block [0x%x,0x%x) not reachable from entry", ErrUnreachableBlock, b.Start, b.End)
		}
	}
	return nil
}
