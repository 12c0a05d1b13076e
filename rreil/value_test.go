package rreil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue_UndefinedEquality(t *testing.T) {
	require.True(t, Undefined().Equal(Undefined()))
	require.False(t, Undefined().Equal(Const(0, 8)))

	name := NewInterner().Intern("eax")
	require.False(t, Undefined().Equal(Var(name, 32)))
}

func TestValue_ConstantCanonicalisesModuloWidth(t *testing.T) {
	v := Const(0x1FF, 8)
	got, ok := v.ConstantValue()
	require.True(t, ok)
	require.Equal(t, uint64(0xFF), got)
}

func TestValue_VariableEqualityRequiresNameWidthSubscript(t *testing.T) {
	in := NewInterner()
	a := in.Intern("eax")
	b := in.Intern("ebx")

	require.True(t, VarSub(a, 32, 1).Equal(VarSub(a, 32, 1)))
	require.False(t, VarSub(a, 32, 1).Equal(VarSub(a, 32, 2)))
	require.False(t, VarSub(a, 32, 1).Equal(VarSub(b, 32, 1)))
	require.False(t, VarSub(a, 32, 1).Equal(VarSub(a, 16, 1)))
}

func TestValue_WithSubscriptOnlyAppliesToVariables(t *testing.T) {
	name := NewInterner().Intern("eax")
	v := Var(name, 32)
	require.Equal(t, NoSubscript, mustSubscript(t, v))

	renamed := v.WithSubscript(3)
	require.Equal(t, Subscript(3), mustSubscript(t, renamed))

	require.Panics(t, func() { Const(1, 8).WithSubscript(0) })
}

func mustSubscript(t *testing.T, v Value) Subscript {
	t.Helper()
	s, ok := v.VariableSubscript()
	require.True(t, ok)
	return s
}

func TestInterner_IsStableAndDeduplicates(t *testing.T) {
	in := NewInterner()
	a := in.Intern("eax")
	b := in.Intern("ebx")
	a2 := in.Intern("eax")
	require.Equal(t, a, a2)
	require.NotEqual(t, a, b)
	require.Equal(t, "eax", in.String(a))
}
