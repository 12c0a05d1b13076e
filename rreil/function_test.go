package rreil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunction_CheckInvariants_DetectsOverlap(t *testing.T) {
	f := NewFunction("f")
	f.Blocks = []BasicBlock{{Start: 0, End: 10}, {Start: 5, End: 15}}
	f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 1})
	f.Entry = 0

	err := f.CheckInvariants()
	require.Error(t, err)
}

func TestFunction_CheckInvariants_DetectsUnreachableBlock(t *testing.T) {
	f := NewFunction("f")
	f.Blocks = []BasicBlock{{Start: 0, End: 2}, {Start: 2, End: 4}}
	f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 1})
	f.Entry = 0
	// No edge from 0 -> 1: block 1 is unreachable.

	err := f.CheckInvariants()
	require.ErrorIs(t, err, ErrUnreachableBlock)
}

func TestFunction_CheckInvariants_PassesOnWellFormedFunction(t *testing.T) {
	f := NewFunction("f")
	f.Blocks = []BasicBlock{{Start: 0, End: 2}, {Start: 2, End: 4}}
	n0 := f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	n1 := f.CFG.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 1})
	f.CFG.AddEdge(n0, n1, Always())
	f.Entry = n0

	require.NoError(t, f.CheckInvariants())
}

func TestFunction_HasStableUUID(t *testing.T) {
	a := NewFunction("f")
	b := NewFunction("f")
	require.NotEqual(t, a.ID, b.ID)
}
