package arch

import "github.com/das-labor/panopticon-sub002/rreil"

// This file provides a small embedded-DSL layer over rreil.NewExpression:
// decoders compose rreil.Statement values through these small constructor
// functions rather than building rreil.Operation literals by hand. Sugar
// over the construction API, not a new representation.

func assign(result rreil.Value, op rreil.Operation) rreil.Statement {
	return rreil.NewExpression(result, op)
}

// Add builds `result = a + b`.
func Add(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpAdd, a, b))
}

// Sub builds `result = a - b`.
func Sub(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpSubtract, a, b))
}

// Mul builds `result = a * b`.
func Mul(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpMultiply, a, b))
}

// And builds `result = a & b`.
func And(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpAnd, a, b))
}

// Or builds `result = a | b`.
func Or(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpInclusiveOr, a, b))
}

// Xor builds `result = a ^ b`.
func Xor(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpExclusiveOr, a, b))
}

// Shl builds `result = a << b`.
func Shl(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpShiftLeft, a, b))
}

// ShrU builds `result = a >> b` (logical).
func ShrU(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpShiftRightUnsigned, a, b))
}

// ShrS builds `result = a >> b` (arithmetic).
func ShrS(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewBinary(rreil.OpShiftRightSigned, a, b))
}

// Mov builds `result = src`.
func Mov(result, src rreil.Value) rreil.Statement {
	return assign(result, rreil.NewMove(src))
}

// CmpEq builds `result = (a == b)`.
func CmpEq(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewComparison(rreil.OpEqual, a, b))
}

// CmpLtU builds `result = (a <u b)`.
func CmpLtU(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewComparison(rreil.OpLessUnsigned, a, b))
}

// CmpLtS builds `result = (a <s b)`.
func CmpLtS(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewComparison(rreil.OpLessSigned, a, b))
}

// CmpLeU builds `result = (a <=u b)`.
func CmpLeU(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewComparison(rreil.OpLessOrEqualUnsigned, a, b))
}

// CmpLeS builds `result = (a <=s b)`.
func CmpLeS(result, a, b rreil.Value) rreil.Statement {
	return assign(result, rreil.NewComparison(rreil.OpLessOrEqualSigned, a, b))
}

// Zext builds `result = zero_extend(src)` into result's width.
func Zext(result, src rreil.Value) rreil.Statement {
	return assign(result, rreil.NewZeroExtend(result.Bits(), src))
}

// Sext builds `result = sign_extend(src)` into result's width.
func Sext(result, src rreil.Value) rreil.Statement {
	return assign(result, rreil.NewSignExtend(result.Bits(), src))
}

// Select builds `result = base with slice written at bit offset`.
func Select(result, base, slice rreil.Value, offset rreil.Width) rreil.Statement {
	return assign(result, rreil.NewSelect(offset, base, slice))
}

// Init builds the initial-value definition for a variable entering a function
// with no caller-provided value (__init block).
func Init(result rreil.Value) rreil.Statement {
	name, ok := result.VariableName()
	if !ok {
		panic("arch: Init requires a Variable result")
	}
	return assign(result, rreil.NewInitialize(name, result.Bits()))
}

// Load builds `result = *(region + addr)`, byteLen bytes wide.
func Load(result rreil.Value, region string, endian rreil.Endianness, byteLen uint8, addr rreil.Value) rreil.Statement {
	return assign(result, rreil.NewLoad(region, endian, byteLen, addr))
}

// Store builds a memory write of value to region at address, byteLen
// bytes wide.
func Store(region string, endian rreil.Endianness, byteLen uint8, addr, value rreil.Value) rreil.Statement {
	return rreil.NewStore(region, endian, byteLen, addr, value)
}
