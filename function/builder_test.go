package function

import (
	"testing"

	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/arch/testarch"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

func TestBuild_SingleBlockHasOneBlockAndNoSuccessors(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.SingleBlock)
	fn, err := New[testarch.Config]("f", a, region).Build(0)
	require.NoError(t, err)
	require.Len(t, fn.Blocks, 1)
	require.NoError(t, fn.CheckInvariants())
	require.Empty(t, fn.CFG.Successors(fn.Entry))
}

func TestBuild_BranchProducesDivergingThenConvergingBlocks(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.Branch)
	fn, err := New[testarch.Config]("f", a, region).Build(0)
	require.NoError(t, err)
	require.NoError(t, fn.CheckInvariants())

	entrySucc := fn.CFG.Successors(fn.Entry)
	require.Len(t, entrySucc, 2)
	require.Equal(t, entrySucc[0].Guard, entrySucc[1].Guard.Negate())
}

func TestBuild_SelfLoopKeepsSingleBlockAsOwnPredecessor(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.SelfLoop)
	fn, err := New[testarch.Config]("f", a, region).Build(0)
	require.NoError(t, err)
	require.NoError(t, fn.CheckInvariants())

	pred := fn.CFG.Predecessors(fn.Entry)
	foundSelf := false
	for _, e := range pred {
		if e.From == fn.Entry {
			foundSelf = true
		}
	}
	require.True(t, foundSelf)
}

func TestBuild_IndirectJumpLeavesUnresolvedTargetNode(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.IndirectResolution)
	builder := New[testarch.Config]("f", a, region)
	fn, err := builder.Build(0)
	require.NoError(t, err)
	require.NoError(t, fn.CheckInvariants())
	require.NotEmpty(t, builder.Unresolved())
}

func TestBuild_SSADiamondBlocksConvergeAtJoin(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(testarch.SSADiamond)
	fn, err := New[testarch.Config]("f", a, region).Build(0)
	require.NoError(t, err)
	require.NoError(t, fn.CheckInvariants())

	// Find the join block (the one with two predecessors).
	joinFound := false
	for id := range fn.CFG.Nodes {
		if len(fn.CFG.Predecessors(rreil.CFGNodeID(id))) == 2 {
			joinFound = true
		}
	}
	require.True(t, joinFound)
}

func TestBuild_RejectsUnreadableEntry(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion{}
	_, err := New[testarch.Config]("f", a, region).Build(0)
	require.ErrorIs(t, err, rreil.ErrEmptyRegion)
}

func TestBuild_DecodeFailureYieldsFailedDecodeNodeNotAbort(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion([]byte{testarch.OpJmp, 0x00, 0x05, 0xEE, 0xEE})
	fn, err := New[testarch.Config]("f", a, region).Build(0)
	require.Error(t, err) // aggregated non-fatal DecodeError
	require.NotNil(t, fn)
	foundFailed := false
	for _, n := range fn.CFG.Nodes {
		if n.Kind == rreil.NodeFailedDecode {
			foundFailed = true
		}
	}
	require.True(t, foundFailed)
}
