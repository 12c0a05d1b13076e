package rreil

import "fmt"

// Width is the bit width of a Value or Operation result, in 1..=64.
type Width uint8

// Subscript is the SSA ordinal attached to a Variable. NoSubscript marks
// a Variable that hasn't been through renaming yet.
type Subscript int32

// NoSubscript is the zero-ish sentinel meaning "not yet assigned an SSA
// subscript".
const NoSubscript Subscript = -1

type valueKind uint8

const (
	kindUndefined valueKind = iota
	kindConstant
	kindVariable
)

// Value is a tagged sum with three variants: Undefined, Constant, and Variable.
// It is a small comparable struct so it can be used directly as a map key (e.g.
// the SSA engine's per-(name,subscript) value map) without a wrapper type.
// Constants are canonicalised modulo 2^bits at construction. Undefined is equal
// to Undefined and to nothing else; two Variables are equal iff name, width and
// subscript all match; a Constant is equal to another Constant iff both the
// canonicalised value and the width match.
type Value struct {
	kind      valueKind
	bits      Width
	constant  uint64
	name      VarName
	subscript Subscript
}

// Undefined returns the singleton Undefined value.
func Undefined() Value {
	return Value{kind: kindUndefined}
}

// Const builds a Constant value, canonicalising value modulo 2^bits.
// Panics if bits is outside 1..=64, matching the other constructors in
// this package: a bad width here is always a decoder bug, not a
// reachable runtime condition.
func Const(value uint64, bits Width) Value {
	mustValidWidth(bits)
	return Value{kind: kindConstant, bits: bits, constant: mask(value, bits)}
}

// Var builds a Variable value with no SSA subscript yet.
func Var(name VarName, bits Width) Value {
	mustValidWidth(bits)
	return Value{kind: kindVariable, bits: bits, name: name, subscript: NoSubscript}
}

// VarSub builds a Variable value with an explicit SSA subscript.
func VarSub(name VarName, bits Width, sub Subscript) Value {
	mustValidWidth(bits)
	return Value{kind: kindVariable, bits: bits, name: name, subscript: sub}
}

func mustValidWidth(bits Width) {
	if bits < 1 || bits > 64 {
		panic(fmt.Sprintf("rreil: width %d out of range 1..=64", bits))
	}
}

func mask(v uint64, bits Width) uint64 {
	if bits == 64 {
		return v
	}
	return v & ((uint64(1) << bits) - 1)
}

// IsUndefined reports whether v is the Undefined variant.
func (v Value) IsUndefined() bool { return v.kind == kindUndefined }

// IsConstant reports whether v is the Constant variant.
func (v Value) IsConstant() bool { return v.kind == kindConstant }

// IsVariable reports whether v is the Variable variant.
func (v Value) IsVariable() bool { return v.kind == kindVariable }

// Bits returns the bit width of v. Zero for Undefined.
func (v Value) Bits() Width { return v.bits }

// ConstantValue returns the canonicalised constant and true if v is a
// Constant, else (0, false).
func (v Value) ConstantValue() (uint64, bool) {
	if v.kind != kindConstant {
		return 0, false
	}
	return v.constant, true
}

// VariableName returns the interned name and true if v is a Variable,
// else (0, false).
func (v Value) VariableName() (VarName, bool) {
	if v.kind != kindVariable {
		return 0, false
	}
	return v.name, true
}

// VariableSubscript returns the SSA subscript and true if v is a
// Variable, else (NoSubscript, false).
func (v Value) VariableSubscript() (Subscript, bool) {
	if v.kind != kindVariable {
		return NoSubscript, false
	}
	return v.subscript, true
}

// HasSubscript reports whether v is a Variable that has been through SSA
// renaming.
func (v Value) HasSubscript() bool {
	return v.kind == kindVariable && v.subscript != NoSubscript
}

// WithSubscript returns a copy of v (which must be a Variable) carrying
// the given subscript. Used exclusively by the SSA renaming pass.
func (v Value) WithSubscript(s Subscript) Value {
	if v.kind != kindVariable {
		panic("rreil: WithSubscript called on a non-Variable Value")
	}
	v.subscript = s
	return v
}

// Equal reports structural equality: Undefined == Undefined, Constants
// compare by (canonical value, bits), Variables by (name, bits,
// subscript). This is also exactly what Go's == does on Value, since all
// fields participate in equality and are consistently zeroed by variant;
// Equal exists for callers who want the comparison spelled out.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String renders v for debugging. Variable names print as their raw
// interned handle; use Format with an *Interner for human-readable
// output.
func (v Value) String() string {
	switch v.kind {
	case kindUndefined:
		return "undef"
	case kindConstant:
		return fmt.Sprintf("0x%x:%d", v.constant, v.bits)
	case kindVariable:
		if v.subscript == NoSubscript {
			return fmt.Sprintf("var%d:%d", v.name, v.bits)
		}
		return fmt.Sprintf("var%d_%d:%d", v.name, v.subscript, v.bits)
	default:
		return "?"
	}
}

// Format renders v using in to resolve the Variable display name.
func (v Value) Format(in *Interner) string {
	if v.kind != kindVariable {
		return v.String()
	}
	name := in.String(v.name)
	if v.subscript == NoSubscript {
		return fmt.Sprintf("%s:%d", name, v.bits)
	}
	return fmt.Sprintf("%s_%d:%d", name, v.subscript, v.bits)
}

// Endianness is carried by loads and stores.
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}
