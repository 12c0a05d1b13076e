package absint_test

import (
	"testing"

	"github.com/das-labor/panopticon-sub002/absint"
	"github.com/das-labor/panopticon-sub002/absint/kset"
	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/arch/testarch"
	"github.com/das-labor/panopticon-sub002/dataflow"
	"github.com/das-labor/panopticon-sub002/function"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

func buildSSAFunction(t *testing.T, program []byte) (*rreil.Function, *dataflow.Dominators, *rreil.Interner) {
	t.Helper()
	in := rreil.NewInterner()
	a := testarch.New(in)
	region := arch.ByteRegion(program)
	fn, err := function.New[testarch.Config]("f", a, region).Build(0)
	require.NoError(t, err)
	_, err = dataflow.ConstructSSA(fn)
	require.NoError(t, err)
	require.NoError(t, fn.CheckInvariants())
	dom := dataflow.ComputeDominators(fn, fn.Entry)
	return fn, dom, in
}

func TestApproximate_IndirectResolution_R1ConvergesToTwoTargets(t *testing.T) {
	fn, dom, in := buildSSAFunction(t, testarch.IndirectResolution)
	eng := absint.New[kset.Element](kset.Domain{})

	values, err := eng.Approximate(fn, dom, nil)
	require.NoError(t, err)

	summary := absint.Summarize(values)
	r1 := in.Intern("r1")
	got, ok := summary[r1]
	require.True(t, ok, "r1 should have at least one tracked definition")
	require.Equal(t, kset.KindSet, got.Kind)
	require.Equal(t, []uint64{13, 14}, got.Values)
}

func TestApproximate_KSetPrecisionBound_R0WidensToJoin(t *testing.T) {
	fn, dom, in := buildSSAFunction(t, testarch.KSetPrecisionBound)
	eng := absint.New[kset.Element](kset.Domain{})

	values, err := eng.Approximate(fn, dom, nil)
	require.NoError(t, err)

	summary := absint.Summarize(values)
	r0 := in.Intern("r0")
	got, ok := summary[r0]
	require.True(t, ok)
	require.Equal(t, kset.Join(), got, "256 reachable values must exceed MaxCardinality and collapse to Join")
}

func TestApproximate_SSADiamond_PhiCombinesBothArms(t *testing.T) {
	fn, dom, in := buildSSAFunction(t, testarch.SSADiamond)
	eng := absint.New[kset.Element](kset.Domain{})

	values, err := eng.Approximate(fn, dom, nil)
	require.NoError(t, err)

	// Summarize(values)[r0] also folds in the entry block's __init
	// definition of r0, which kset abstracts to Join, so the check is
	// made on the value of the join block's phi itself.
	r0 := in.Intern("r0")
	var phi *rreil.Statement
	for bi := range fn.Blocks {
		if mn, ok := fn.Blocks[bi].LeadingSynthetic("__phi"); ok {
			phi = &mn.Statements[0]
		}
	}
	require.NotNil(t, phi, "the join block should start with a __phi")
	name, ok := phi.Result.VariableName()
	require.True(t, ok)
	require.Equal(t, r0, name)
	sub, _ := phi.Result.VariableSubscript()
	got, ok := values[absint.SSAKey{Name: r0, Subscript: sub}]
	require.True(t, ok)
	require.Equal(t, kset.KindSet, got.Kind)
	require.Contains(t, got.Values, uint64(1))
	require.Contains(t, got.Values, uint64(2))
}

func TestApproximate_Branch_GuardNarrowsSinglePredecessorBlock(t *testing.T) {
	// Branch's not-zero arm (single predecessor, guarded on the jnz
	// flag's false polarity) executes `dec r0` — this just exercises
	// that narrowing doesn't break the fixpoint's convergence or
	// invariants on a guarded single-predecessor edge; testarch has no
	// scenario where narrowing changes the final answer (its guards
	// compare r0 to zero, not a value absint ever represents directly as
	// r0 itself), so this is a soundness/crash check, not a precision
	// check.
	fn, dom, _ := buildSSAFunction(t, testarch.Branch)
	eng := absint.New[kset.Element](kset.Domain{})

	_, err := eng.Approximate(fn, dom, nil)
	require.NoError(t, err)
}
