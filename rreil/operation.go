package rreil

import "fmt"

// Opcode enumerates the closed set of pure expression operators plus memory
// load ("Operation"). The set is intentionally small (~20 variants,) so that
// every consumer (reads, the abstract-interpretation execute dispatch, the
// renderer) can afford an exhaustive switch instead of a default case that
// silently drops a new variant.
type Opcode uint8

const (
	// Integer arithmetic/bitwise. Both operands must share a width;
	// the result has that width.
	OpAdd Opcode = iota
	OpSubtract
	OpMultiply
	OpDivideSigned
	OpDivideUnsigned
	OpModulo
	OpShiftLeft
	OpShiftRightSigned
	OpShiftRightUnsigned
	OpAnd
	OpInclusiveOr
	OpExclusiveOr

	// Comparisons. Result width is always 1.
	OpEqual
	OpLessUnsigned
	OpLessSigned
	OpLessOrEqualUnsigned
	OpLessOrEqualSigned

	// Width-changing.
	OpZeroExtend
	OpSignExtend
	OpSelect

	OpMove
	OpInitialize
	OpLoad
	OpPhi

	opcodeCount // sentinel; not a real opcode
)

var opcodeNames = [opcodeCount]string{
	OpAdd: "add", OpSubtract: "sub", OpMultiply: "mul",
	OpDivideSigned: "dvs", OpDivideUnsigned: "dvu", OpModulo: "mod",
	OpShiftLeft: "shl", OpShiftRightSigned: "shrs", OpShiftRightUnsigned: "shru",
	OpAnd: "and", OpInclusiveOr: "or", OpExclusiveOr: "xor",
	OpEqual: "eq", OpLessUnsigned: "ltu", OpLessSigned: "lts",
	OpLessOrEqualUnsigned: "leu", OpLessOrEqualSigned: "les",
	OpZeroExtend: "zext", OpSignExtend: "sext", OpSelect: "sel",
	OpMove: "mov", OpInitialize: "init", OpLoad: "load", OpPhi: "phi",
}

func (op Opcode) String() string {
	if op >= opcodeCount {
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
	return opcodeNames[op]
}

var binaryArithmetic = map[Opcode]bool{
	OpAdd: true, OpSubtract: true, OpMultiply: true,
	OpDivideSigned: true, OpDivideUnsigned: true, OpModulo: true,
	OpShiftLeft: true, OpShiftRightSigned: true, OpShiftRightUnsigned: true,
	OpAnd: true, OpInclusiveOr: true, OpExclusiveOr: true,
}

var comparisons = map[Opcode]bool{
	OpEqual: true, OpLessUnsigned: true, OpLessSigned: true,
	OpLessOrEqualUnsigned: true, OpLessOrEqualSigned: true,
}

// Operation is a pure expression with a fixed arity and a result width
// determined by operand widths, except where carves out an exception
// (ZeroExtend/SignExtend/Select). Following the flattened-struct idiom for
// large instruction sum types (Go has no tagged unions): every Operation is
// this one struct, and which fields are meaningful depends on Opcode.
// Constructors below are the only supported way to build one, so the invalid
// field combinations this allows in principle never occur in practice.
type Operation struct {
	Opcode Opcode
	Bits   Width // result width

	A, B, C Value // operand slots; meaning depends on Opcode, see constructors

	Offset Width // Select: bit offset of slice within base

	Region  string     // Load: memory region tag
	Endian  Endianness // Load: endianness
	ByteLen uint8      // Load: number of bytes read (Bits == ByteLen*8)

	InitName VarName // Initialize: the named global being initialised
}

// NewBinary builds a binary arithmetic/bitwise Operation. Panics rather
// than returning an error (this is a decoder bug, not a recoverable runtime
// condition) if a and b have different widths (the panic value wraps
// ErrTypeMismatch) or op is not one of the binary arithmetic/bitwise opcodes.
func NewBinary(op Opcode, a, b Value) Operation {
	if !binaryArithmetic[op] {
		panic(fmt.Sprintf("rreil: %s is not a binary arithmetic/bitwise opcode", op))
	}
	if a.Bits() != b.Bits() {
		panic(fmt.Errorf("%w: %s has operands of width %d and %d", ErrTypeMismatch, op, a.Bits(), b.Bits()))
	}
	return Operation{Opcode: op, Bits: a.Bits(), A: a, B: b}
}

// NewComparison builds a comparison Operation; result width is always 1.
func NewComparison(op Opcode, a, b Value) Operation {
	if !comparisons[op] {
		panic(fmt.Sprintf("rreil: %s is not a comparison opcode", op))
	}
	if a.Bits() != b.Bits() {
		panic(fmt.Errorf("%w: %s has operands of width %d and %d", ErrTypeMismatch, op, a.Bits(), b.Bits()))
	}
	return Operation{Opcode: op, Bits: 1, A: a, B: b}
}

// NewZeroExtend builds ZeroExtend(n, v); requires n >= width(v).
func NewZeroExtend(n Width, v Value) Operation {
	if n < v.Bits() {
		panic(fmt.Errorf("%w: zero-extend to %d narrower than source width %d", ErrTypeMismatch, n, v.Bits()))
	}
	return Operation{Opcode: OpZeroExtend, Bits: n, A: v}
}

// NewSignExtend builds SignExtend(n, v); requires n >= width(v).
func NewSignExtend(n Width, v Value) Operation {
	if n < v.Bits() {
		panic(fmt.Errorf("%w: sign-extend to %d narrower than source width %d", ErrTypeMismatch, n, v.Bits()))
	}
	return Operation{Opcode: OpSignExtend, Bits: n, A: v}
}

// NewSelect builds Select(offset, base, slice): writes slice into base
// starting at bit offset. width(result) = width(base). Rejects an
// offset that would run the slice past the end of base.
func NewSelect(offset Width, base, slice Value) Operation {
	if uint16(offset)+uint16(slice.Bits()) > uint16(base.Bits()) {
		panic(fmt.Errorf("%w: select offset %d + slice width %d exceeds base width %d",
			ErrTypeMismatch, offset, slice.Bits(), base.Bits()))
	}
	return Operation{Opcode: OpSelect, Bits: base.Bits(), A: base, B: slice, Offset: offset}
}

// NewMove builds the identity Operation Move(v).
func NewMove(v Value) Operation {
	return Operation{Opcode: OpMove, Bits: v.Bits(), A: v}
}

// NewInitialize builds Initialize(name, bits): the symbolic initial
// value of a named global.
func NewInitialize(name VarName, bits Width) Operation {
	mustValidWidth(bits)
	return Operation{Opcode: OpInitialize, Bits: bits, InitName: name}
}

// NewLoad builds Load(region, endianness, bytes, address). Result width
// is bytes*8.
func NewLoad(region string, endian Endianness, byteLen uint8, address Value) Operation {
	if byteLen == 0 || byteLen > 8 {
		panic(fmt.Sprintf("rreil: load of %d bytes out of range 1..=8", byteLen))
	}
	return Operation{
		Opcode: OpLoad, Bits: Width(byteLen) * 8,
		Region: region, Endian: endian, ByteLen: byteLen, A: address,
	}
}

// NewPhi builds Phi(a, b, c): merges up to three inbound definitions.
// Undefined arguments are legal (they denote "no value on this edge
// yet") and are still reported by Reads.
func NewPhi(a, b, c Value) Operation {
	bits := firstDefinedWidth(a, b, c)
	return Operation{Opcode: OpPhi, Bits: bits, A: a, B: b, C: c}
}

func firstDefinedWidth(vs ...Value) Width {
	for _, v := range vs {
		if !v.IsUndefined() {
			return v.Bits()
		}
	}
	return 0
}

// Reads returns the ordered set of value operands this Operation depends
// on. For Phi, all three arguments are reported, including any Undefined
// placeholders: liveness and the abstract-interpretation engine both
// need to see the empty slots, not just the filled ones.
//
// This switch is exhaustive over Opcode by construction; see
// TestOperationReadsIsExhaustive for the build-time-equivalent guarantee
// Go's lack of enum exhaustiveness checking can't give us for free.
func (o Operation) Reads() []Value {
	switch o.Opcode {
	case OpInitialize:
		return nil
	case OpMove, OpZeroExtend, OpSignExtend:
		return []Value{o.A}
	case OpLoad:
		return []Value{o.A}
	case OpSelect:
		return []Value{o.A, o.B}
	case OpPhi:
		return []Value{o.A, o.B, o.C}
	default:
		if binaryArithmetic[o.Opcode] || comparisons[o.Opcode] {
			return []Value{o.A, o.B}
		}
		panic(fmt.Sprintf("rreil: Operation.Reads is not exhaustive over %s", o.Opcode))
	}
}

// String renders o for debugging, using raw variable handles.
func (o Operation) String() string {
	switch o.Opcode {
	case OpInitialize:
		return fmt.Sprintf("init(var%d:%d)", o.InitName, o.Bits)
	case OpLoad:
		return fmt.Sprintf("load(%s, %s, %d, %s)", o.Region, o.Endian, o.ByteLen, o.A)
	case OpSelect:
		return fmt.Sprintf("select(%d, %s, %s)", o.Offset, o.A, o.B)
	case OpZeroExtend, OpSignExtend, OpMove:
		return fmt.Sprintf("%s(%d, %s)", o.Opcode, o.Bits, o.A)
	case OpPhi:
		return fmt.Sprintf("phi(%s, %s, %s)", o.A, o.B, o.C)
	default:
		return fmt.Sprintf("%s(%s, %s)", o.Opcode, o.A, o.B)
	}
}
