package rreil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOperationReadsIsExhaustive stands in for the build-time exhaustiveness
// check asks for: Go has no compiler-enforced enum exhaustiveness, so this test
// iterates every declared Opcode and fails if Operation.Reads panics on any of
// them, catching the case where a new Opcode is added to the const block
// without a corresponding case in Reads.
func TestOperationReadsIsExhaustive(t *testing.T) {
	in := NewInterner()
	name := in.Intern("x")
	v8 := Var(name, 8)

	for op := Opcode(0); op < opcodeCount; op++ {
		o := Operation{Opcode: op, Bits: 8, A: v8, B: v8, C: v8}
		require.NotPanics(t, func() {
			_ = o.Reads()
		}, "Opcode %s has no case in Reads", op)
	}
}

func TestNewBinary_RejectsWidthMismatch(t *testing.T) {
	in := NewInterner()
	name := in.Intern("x")
	a := Var(name, 8)
	b := Var(name, 16)
	require.Panics(t, func() { NewBinary(OpAdd, a, b) })
}

func TestNewBinary_RejectsNonArithmeticOpcode(t *testing.T) {
	a := Const(1, 8)
	require.Panics(t, func() { NewBinary(OpPhi, a, a) })
}

func TestNewComparison_ResultWidthIsOne(t *testing.T) {
	a := Const(1, 32)
	b := Const(2, 32)
	op := NewComparison(OpLessSigned, a, b)
	require.EqualValues(t, 1, op.Bits)
}

func TestNewZeroSignExtend_RejectNarrowing(t *testing.T) {
	v := Const(1, 32)
	require.Panics(t, func() { NewZeroExtend(16, v) })
	require.Panics(t, func() { NewSignExtend(16, v) })

	zx := NewZeroExtend(64, v)
	require.EqualValues(t, 64, zx.Bits)
}

func TestNewSelect_RejectsOffsetPastBaseWidth(t *testing.T) {
	base := Const(0, 32)
	slice := Const(0, 16)
	require.Panics(t, func() { NewSelect(20, base, slice) })
	require.NotPanics(t, func() { NewSelect(16, base, slice) })
}

func TestNewPhi_ReportsUndefinedArguments(t *testing.T) {
	in := NewInterner()
	name := in.Intern("x")
	v := Var(name, 8)
	op := NewPhi(v, Undefined(), Undefined())
	reads := op.Reads()
	require.Len(t, reads, 3)
	require.True(t, reads[1].IsUndefined())
	require.True(t, reads[2].IsUndefined())
}

func TestNewLoad_ResultWidthIsBytesTimesEight(t *testing.T) {
	addr := Const(0x1000, 32)
	op := NewLoad("ram", LittleEndian, 4, addr)
	require.EqualValues(t, 32, op.Bits)
}
