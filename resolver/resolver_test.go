package resolver_test

import (
	"testing"

	"github.com/das-labor/panopticon-sub002/absint/kset"
	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/arch/testarch"
	"github.com/das-labor/panopticon-sub002/function"
	"github.com/das-labor/panopticon-sub002/resolver"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

func TestResolve_IndirectResolution_DiscoversBothConcreteTargets(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.IndirectResolution)

	b := function.New[testarch.Config]("f", a, region)
	_, err := b.Build(0)
	require.NoError(t, err)
	require.Len(t, b.Unresolved(), 1, "the ijmp at address 12 should produce exactly one UnresolvedTarget node")

	err = resolver.Resolve[testarch.Config, kset.Element](b, kset.Domain{}, kset.Enumerate)
	require.NoError(t, err)

	require.Empty(t, b.Unresolved(), "the resolver should have cleared the single indirect target")

	fn := b.Function()
	require.NoError(t, fn.CheckInvariants())

	ret13, ok := fn.BlockNode(blockIndexAt(fn, 13))
	require.True(t, ok)
	ret14, ok := fn.BlockNode(blockIndexAt(fn, 14))
	require.True(t, ok)

	ijmpNode, ok := fn.BlockNode(blockIndexAt(fn, 12))
	require.True(t, ok)

	succs := fn.CFG.Successors(ijmpNode)
	targets := map[rreil.CFGNodeID]bool{}
	for _, e := range succs {
		targets[e.To] = true
	}
	require.True(t, targets[ret13], "ijmp block must now reach the ret at 13 directly")
	require.True(t, targets[ret14], "ijmp block must now reach the ret at 14 directly")
}

func TestResolve_NoUnresolvedTargets_IsANoOp(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.SSADiamond)

	b := function.New[testarch.Config]("f", a, region)
	_, err := b.Build(0)
	require.NoError(t, err)
	require.Empty(t, b.Unresolved())

	err = resolver.Resolve[testarch.Config, kset.Element](b, kset.Domain{}, kset.Enumerate)
	require.NoError(t, err)
}

func blockIndexAt(fn *rreil.Function, addr uint64) int {
	for i, blk := range fn.Blocks {
		if blk.Start == addr {
			return i
		}
	}
	return -1
}
