package rreil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCFG_SuccessorsPredecessorsPreserveInsertionOrder(t *testing.T) {
	var g CFG
	a := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	b := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 1})
	c := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 2})

	g.AddEdge(a, b, Always())
	g.AddEdge(a, c, Never())

	succ := g.Successors(a)
	require.Len(t, succ, 2)
	require.Equal(t, b, succ[0].To)
	require.Equal(t, c, succ[1].To)

	pred := g.Predecessors(c)
	require.Len(t, pred, 1)
	require.Equal(t, a, pred[0].From)
}

func TestCFG_SelfEdgeSurvives(t *testing.T) {
	var g CFG
	a := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	g.AddEdge(a, a, Always())
	require.Len(t, g.Successors(a), 1)
	require.Len(t, g.Predecessors(a), 1)
}

func TestGuard_NegateRoundTrips(t *testing.T) {
	require.Equal(t, Never(), Always().Negate())
	require.Equal(t, Always(), Never().Negate())

	flag := Const(1, 1)
	require.Equal(t, GuardFlagFalse, FlagTrue(flag).Negate().Polarity)
	require.Equal(t, GuardFlagTrue, FlagFalse(flag).Negate().Polarity)
}

func TestCFG_RemoveEdgesFromDropsOnlyThatNodesOutgoing(t *testing.T) {
	var g CFG
	a := g.AddNode(CFGNode{Kind: NodeUnresolvedTarget})
	b := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 0})
	c := g.AddNode(CFGNode{Kind: NodeBasicBlock, Block: 1})

	g.AddEdge(b, a, Always())
	g.AddEdge(a, c, Always())

	g.RemoveEdgesFrom(a)
	require.Len(t, g.Successors(a), 0)
	require.Len(t, g.Successors(b), 1)
}
