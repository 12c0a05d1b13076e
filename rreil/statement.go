package rreil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StatementKind discriminates the five Statement variants.
type StatementKind uint8

const (
	StmtExpression StatementKind = iota
	StmtStore
	StmtCall
	StmtIndirectCall
	StmtReturn
)

// FunctionRef names a Call target: either a known Function (by UUID) or
// an external symbol.
type FunctionRef struct {
	FunctionID uuid.UUID
	External   string
	IsExternal bool
}

// ExternalRef builds a FunctionRef to an external symbol (e.g. a libc
// import, a syscall trampoline) rather than an analysed Function.
func ExternalRef(name string) FunctionRef {
	return FunctionRef{External: name, IsExternal: true}
}

// InternalRef builds a FunctionRef to a Function known by UUID.
func InternalRef(id uuid.UUID) FunctionRef {
	return FunctionRef{FunctionID: id}
}

func (r FunctionRef) String() string {
	if r.IsExternal {
		return r.External
	}
	return r.FunctionID.String()
}

// Statement is one of Expression, Store, Call, IndirectCall, Return. As with
// Operation, Go's lack of tagged unions means this is a single flattened struct
// whose fields are interpreted according to Kind.
type Statement struct {
	Kind StatementKind

	// StmtExpression
	Result Value
	Op     Operation

	// StmtStore
	Region     string
	Endian     Endianness
	ByteLen    uint8
	Address    Value
	StoreValue Value

	// StmtCall
	Target FunctionRef

	// StmtIndirectCall
	IndirectTarget Value
}

// NewExpression builds an Expression statement assigning op's result to
// result.
func NewExpression(result Value, op Operation) Statement {
	if !result.IsVariable() {
		panic("rreil: Expression result must be a Variable")
	}
	if result.Bits() != op.Bits {
		panic(fmt.Errorf("%w: expression result width %d does not match operation width %d",
			ErrTypeMismatch, result.Bits(), op.Bits))
	}
	return Statement{Kind: StmtExpression, Result: result, Op: op}
}

// NewStore builds a Store statement: Store(region, endianness, bytes,
// address, value).
func NewStore(region string, endian Endianness, byteLen uint8, address, value Value) Statement {
	if byteLen == 0 || byteLen > 8 {
		panic(fmt.Sprintf("rreil: store of %d bytes out of range 1..=8", byteLen))
	}
	if Width(byteLen)*8 != value.Bits() {
		panic(fmt.Errorf("%w: store of %d bytes does not match value width %d", ErrTypeMismatch, byteLen, value.Bits()))
	}
	return Statement{Kind: StmtStore, Region: region, Endian: endian, ByteLen: byteLen, Address: address, StoreValue: value}
}

// NewCall builds a Call statement.
func NewCall(target FunctionRef) Statement {
	return Statement{Kind: StmtCall, Target: target}
}

// NewIndirectCall builds an IndirectCall statement whose target is
// computed at runtime.
func NewIndirectCall(target Value) Statement {
	return Statement{Kind: StmtIndirectCall, IndirectTarget: target}
}

// NewReturn builds a Return statement.
func NewReturn() Statement {
	return Statement{Kind: StmtReturn}
}

// Reads returns the Value operands this Statement consumes, in the same
// spirit as Operation.Reads: used by liveness and by the rewriting pass
// that resolves SSA operand uses.
func (s *Statement) Reads() []Value {
	switch s.Kind {
	case StmtExpression:
		return s.Op.Reads()
	case StmtStore:
		return []Value{s.Address, s.StoreValue}
	case StmtIndirectCall:
		return []Value{s.IndirectTarget}
	case StmtCall, StmtReturn:
		return nil
	default:
		panic(fmt.Sprintf("rreil: Statement.Reads is not exhaustive over kind %d", s.Kind))
	}
}

// RewriteReads replaces the read operands, in the order Reads reports
// them, with newReads (the i-th read becomes newReads[i]). Used by the SSA renaming pass to substitute
// top-of-stack definitions into operand positions without constructing a
// brand-new Statement.
func (s *Statement) RewriteReads(newReads []Value) {
	switch s.Kind {
	case StmtExpression:
		switch s.Op.Opcode {
		case OpInitialize:
			// no operands
		case OpMove, OpZeroExtend, OpSignExtend, OpLoad:
			s.Op.A = newReads[0]
		case OpSelect:
			s.Op.A, s.Op.B = newReads[0], newReads[1]
		case OpPhi:
			s.Op.A, s.Op.B, s.Op.C = newReads[0], newReads[1], newReads[2]
		default:
			s.Op.A, s.Op.B = newReads[0], newReads[1]
		}
	case StmtStore:
		s.Address, s.StoreValue = newReads[0], newReads[1]
	case StmtIndirectCall:
		s.IndirectTarget = newReads[0]
	case StmtCall, StmtReturn:
		// no operands
	}
}

// DefinedValue returns the Value this statement defines and true, or the
// zero Value and false if it defines nothing (every kind but
// Expression).
func (s *Statement) DefinedValue() (Value, bool) {
	if s.Kind == StmtExpression {
		return s.Result, true
	}
	return Value{}, false
}

func (s *Statement) String() string {
	switch s.Kind {
	case StmtExpression:
		return fmt.Sprintf("%s = %s", s.Result, s.Op)
	case StmtStore:
		return fmt.Sprintf("store(%s, %s, %d, %s, %s)", s.Region, s.Endian, s.ByteLen, s.Address, s.StoreValue)
	case StmtCall:
		return fmt.Sprintf("call %s", s.Target)
	case StmtIndirectCall:
		return fmt.Sprintf("icall %s", s.IndirectTarget)
	case StmtReturn:
		return "ret"
	default:
		return "?"
	}
}

// TokenKind discriminates the three rendering-hook token kinds.
type TokenKind uint8

const (
	TokenLiteral TokenKind = iota
	TokenVariable
	TokenPointer
)

// Token is one piece of a Mnemonic's rendered form: a literal fragment,
// an operand rendered as a variable/immediate, or an operand rendered as
// an address. Consumed by the out-of-scope renderer; the core only
// produces the token stream.
type Token struct {
	Kind    TokenKind
	Text    string // TokenLiteral: literal text
	HasSign bool   // TokenVariable: render with an explicit sign
	IsCode  bool   // TokenPointer: target is code (vs. data)
}

// Mnemonic is one decoded instruction: an address range, opcode, display
// template, the operand Values referenced by the template, and the RREIL
// statements implementing it.
type Mnemonic struct {
	Start, End uint64
	Opcode     string
	Template   string
	Operands   []Value
	Statements []Statement
}

// Synthetic reports whether m's opcode begins with "__": synthetic
// mnemonics (init, phi, wide-register aliases) participate in the IL but
// are never rendered to users.
func (m *Mnemonic) Synthetic() bool {
	return strings.HasPrefix(m.Opcode, "__")
}

// Len returns the byte length of the mnemonic's address range.
func (m *Mnemonic) Len() uint64 { return m.End - m.Start }

// Tokens parses m.Template into the rendering-hook token stream. The template
// mini-grammar recognises: %v unsigned variable/immediate operand %+v signed
// variable/immediate operand %c code-pointer operand %p data-pointer operand
// consuming one entry of m.Operands per placeholder, in order; all other text
// is literal. This is deliberately tiny: the renderer that actually turns
// tokens into columns of text is out of core scope.
func (m *Mnemonic) Tokens() []Token {
	var toks []Token
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			toks = append(toks, Token{Kind: TokenLiteral, Text: lit.String()})
			lit.Reset()
		}
	}
	s := m.Template
	for i := 0; i < len(s); i++ {
		if s[i] != '%' || i+1 >= len(s) {
			lit.WriteByte(s[i])
			continue
		}
		switch {
		case i+2 < len(s) && s[i+1] == '+' && s[i+2] == 'v':
			flushLit()
			toks = append(toks, Token{Kind: TokenVariable, HasSign: true})
			i += 2
		case s[i+1] == 'v':
			flushLit()
			toks = append(toks, Token{Kind: TokenVariable})
			i++
		case s[i+1] == 'c':
			flushLit()
			toks = append(toks, Token{Kind: TokenPointer, IsCode: true})
			i++
		case s[i+1] == 'p':
			flushLit()
			toks = append(toks, Token{Kind: TokenPointer, IsCode: false})
			i++
		default:
			lit.WriteByte(s[i])
		}
	}
	flushLit()
	return toks
}
