package kset

import (
	"testing"

	"github.com/das-labor/panopticon-sub002/absint"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

var _ absint.Domain[Element] = Domain{}

func TestCombine_IsIdentityOnItself(t *testing.T) {
	s := Single(3, 8)
	require.Equal(t, s, s.Combine(s))
}

func TestCombine_MeetIsIdentityElement(t *testing.T) {
	s := Single(3, 8)
	require.Equal(t, s, Meet().Combine(s))
	require.Equal(t, s, s.Combine(Meet()))
}

func TestCombine_UnionsDistinctSets(t *testing.T) {
	a := Single(1, 8)
	b := Single(2, 8)
	got := a.Combine(b)
	require.Equal(t, KindSet, got.Kind)
	require.Equal(t, []uint64{1, 2}, got.Values)
}

func TestCombine_NeitherInputMoreExactThanResult(t *testing.T) {
	// qc_combine in kset.rs: combine(a,b) absorbs both inputs, so under
	// MoreExact's accumulation order neither a nor b is strictly more
	// exact than the result, for any pair.
	cases := []Element{Meet(), Single(1, 8), Single(2, 8), Single(1, 8).Combine(Single(2, 8)), Join()}
	for _, a := range cases {
		for _, b := range cases {
			c := a.Combine(b)
			require.Falsef(t, a.MoreExact(c), "%v must not be more exact than combine(%v,%v)=%v", a, a, b, c)
			require.Falsef(t, b.MoreExact(c), "%v must not be more exact than combine(%v,%v)=%v", b, a, b, c)
		}
	}
}

func TestCombine_PastMaxCardinalityCollapsesToJoin(t *testing.T) {
	e := Meet()
	for i := 0; i < MaxCardinality+1; i++ {
		e = e.Combine(Single(uint64(i), 8))
	}
	require.Equal(t, KindJoin, e.Kind)
}

func TestNarrow_IsSetIntersection(t *testing.T) {
	a := Element{Kind: KindSet, Bits: 8, Values: []uint64{1, 2, 3}}
	b := Element{Kind: KindSet, Bits: 8, Values: []uint64{2, 3, 4}}
	got := a.Narrow(b)
	require.Equal(t, []uint64{2, 3}, got.Values)
}

func TestNarrow_DisjointSetsYieldMeet(t *testing.T) {
	a := Single(1, 8)
	b := Single(2, 8)
	require.Equal(t, Meet(), a.Narrow(b))
}

func TestNarrow_JoinIsIdentityElement(t *testing.T) {
	s := Single(1, 8)
	require.Equal(t, s, s.Narrow(Join()))
}

func TestMoreExact_AccumulationOrderNotClassicalPrecision(t *testing.T) {
	// kset.rs: a Set is more exact than a strict subset of itself (it
	// has absorbed more of the fixpoint), the reverse of the classical
	// "smaller is more precise" reading.
	small := Single(1, 8)
	big := small.Combine(Single(2, 8))
	require.True(t, big.MoreExact(small), "a superset must be more exact than its strict subset")
	require.False(t, small.MoreExact(big))
}

func TestMoreExact_JoinBeatsEverythingMeetBeatsNothing(t *testing.T) {
	require.True(t, Join().MoreExact(Single(1, 8)))
	require.True(t, Single(1, 8).MoreExact(Meet()))
	require.False(t, Meet().MoreExact(Join()))
}

func TestWiden_IsPassThroughOfSecondArgument(t *testing.T) {
	a := Single(1, 8)
	b := Single(1, 8).Combine(Single(2, 8))
	require.Equal(t, b, a.Widen(b))
}

func TestExtract_BitSlicesEveryMember(t *testing.T) {
	e := Element{Kind: KindSet, Bits: 8, Values: []uint64{0xAB, 0xCD}}
	got := e.Extract(4, 4)
	require.Equal(t, []uint64{0xA, 0xC}, got.Values)
}

func TestDomain_AbstractValue_ConstantBecomesSingleton(t *testing.T) {
	d := Domain{}
	got := d.AbstractValue(rreil.Const(7, 8))
	require.Equal(t, Single(7, 8), got)
}

func TestDomain_AbstractValue_UndefinedBecomesJoin(t *testing.T) {
	d := Domain{}
	require.Equal(t, Join(), d.AbstractValue(rreil.Undefined()))
}

func TestDomain_Execute_Add_PermutesCartesianProduct(t *testing.T) {
	d := Domain{}
	a := Single(1, 8).Combine(Single(2, 8))
	b := Single(10, 8)
	op := rreil.NewBinary(rreil.OpAdd, rreil.Var(0, 8), rreil.Var(1, 8))
	got := d.Execute(absint.ProgramPoint{}, op, []Element{a, b})
	require.Equal(t, []uint64{11, 12}, got.Values)
}

func TestDomain_Execute_LoadIsAlwaysJoin(t *testing.T) {
	d := Domain{}
	op := rreil.NewLoad("mem", rreil.LittleEndian, 1, rreil.Var(1, 8))
	got := d.Execute(absint.ProgramPoint{}, op, []Element{Single(4, 8)})
	require.Equal(t, Join(), got)
}
