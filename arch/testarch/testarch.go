// Package testarch implements the toy byte-per-mnemonic architecture used by
// every concrete test scenario in this suite: a handful of single-byte
// (plus small immediate) opcodes operating on two 8-bit registers, just enough
// surface to exercise branching, self-loops, indirect jumps, SSA phi placement
// and K-set precision bounds without the weight of a real ISA.
package testarch

import (
	"encoding/binary"
	"fmt"

	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/rreil"
)

// Opcode byte values. Two-byte immediates are big-endian.
const (
	OpNop     = 0x00 // nop                       (1 byte)
	OpInc     = 0x01 // r0 = r0 + 1               (1 byte)
	OpDec     = 0x02 // r0 = r0 - 1               (1 byte)
	OpJmp     = 0x03 // jmp addr16                (3 bytes)
	OpJnz     = 0x04 // jnz addr16 (r0 != 0)      (3 bytes)
	OpJz      = 0x05 // jz  addr16 (r0 == 0)      (3 bytes)
	OpIJmp    = 0x06 // ijmp r1 (indirect)        (1 byte)
	OpLoad    = 0x07 // r0 = *mem[r1]             (1 byte)
	OpAndImm  = 0x08 // r0 = r0 & imm8            (2 bytes)
	OpMovImm  = 0x09 // r0 = imm8                 (2 bytes)
	OpMovR1R0 = 0x0a // r1 = r0                   (1 byte)
	OpRet     = 0x0b // ret                       (1 byte)
)

// Config is testarch's (empty) per-decode configuration: the
// architecture has no skip-flag or mode-switching state, so Config
// carries nothing and does not implement arch.SkipState.
type Config struct{}

// Arch is the arch.Architecture[Config] implementation. It holds the
// interned register names rather than re-interning per decode call,
// mirroring how a real architecture package amortises its register table
// across an entire disassembly run.
type Arch struct {
	interner *rreil.Interner
	r0, r1   rreil.VarName
}

// New creates a testarch.Arch whose two registers are interned into in.
// Callers share one Interner across every Architecture used within a
// function.Builder / registry so that cross-function Value comparisons
// stay meaningful.
func New(in *rreil.Interner) *Arch {
	return &Arch{interner: in, r0: in.Intern("r0"), r1: in.Intern("r1")}
}

func (a *Arch) InitialConfig() Config { return Config{} }

func (a *Arch) r0v() rreil.Value { return rreil.Var(a.r0, 8) }
func (a *Arch) r1v() rreil.Value { return rreil.Var(a.r1, 8) }

// Decode implements arch.Architecture[Config].
func (a *Arch) Decode(region arch.Region, address uint64, cfg Config) (arch.Match, Config, error) {
	head, err := region.Read(address, 1)
	if err != nil || len(head) == 0 {
		return arch.Match{}, cfg, fmt.Errorf("%w: cannot read opcode byte at 0x%x", rreil.ErrDecodeError, address)
	}
	op := head[0]

	switch op {
	case OpNop:
		return a.nonary(address, "nop"), cfg, nil
	case OpInc:
		return a.unaryAlu(address, "inc", arch.Add(a.r0v(), a.r0v(), rreil.Const(1, 8))), cfg, nil
	case OpDec:
		return a.unaryAlu(address, "dec", arch.Sub(a.r0v(), a.r0v(), rreil.Const(1, 8))), cfg, nil
	case OpJmp:
		return a.jump(region, address)
	case OpJnz:
		return a.conditionalJump(region, address, "jnz", false)
	case OpJz:
		return a.conditionalJump(region, address, "jz", true)
	case OpIJmp:
		m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: "ijmp", Template: "ijmp r1", Operands: []rreil.Value{a.r1v()}}
		return arch.Match{
			Mnemonics: []rreil.Mnemonic{m},
			Jumps:     []arch.Jump{{Target: a.r1v(), Guard: rreil.Always()}},
			Consumed:  1,
		}, cfg, nil
	case OpLoad:
		stmt := arch.Load(a.r0v(), "mem", rreil.LittleEndian, 1, a.r1v())
		m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: "load", Template: "load r0, [r1]",
			Operands: []rreil.Value{a.r0v(), a.r1v()}, Statements: []rreil.Statement{stmt}}
		return a.fallthroughMatch(m, address+1), cfg, nil
	case OpAndImm:
		imm, err := region.Read(address+1, 1)
		if err != nil || len(imm) != 1 {
			return arch.Match{}, cfg, fmt.Errorf("%w: and imm8 truncated at 0x%x", rreil.ErrDecodeError, address)
		}
		stmt := arch.And(a.r0v(), a.r0v(), rreil.Const(uint64(imm[0]), 8))
		m := rreil.Mnemonic{Start: address, End: address + 2, Opcode: "and", Template: "and r0, #%v",
			Operands: []rreil.Value{rreil.Const(uint64(imm[0]), 8)}, Statements: []rreil.Statement{stmt}}
		return a.fallthroughMatch(m, address+2), cfg, nil
	case OpMovImm:
		imm, err := region.Read(address+1, 1)
		if err != nil || len(imm) != 1 {
			return arch.Match{}, cfg, fmt.Errorf("%w: mov imm8 truncated at 0x%x", rreil.ErrDecodeError, address)
		}
		stmt := arch.Mov(a.r0v(), rreil.Const(uint64(imm[0]), 8))
		m := rreil.Mnemonic{Start: address, End: address + 2, Opcode: "mov", Template: "mov r0, #%v",
			Operands: []rreil.Value{rreil.Const(uint64(imm[0]), 8)}, Statements: []rreil.Statement{stmt}}
		return a.fallthroughMatch(m, address+2), cfg, nil
	case OpMovR1R0:
		return a.unaryAlu(address, "mov", arch.Mov(a.r1v(), a.r0v())), cfg, nil
	case OpRet:
		m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: "ret", Template: "ret",
			Statements: []rreil.Statement{rreil.NewReturn()}}
		return arch.Match{Mnemonics: []rreil.Mnemonic{m}, Consumed: 1}, cfg, nil
	default:
		return arch.Match{}, cfg, fmt.Errorf("%w: opcode 0x%02x at 0x%x", rreil.ErrDecodeError, op, address)
	}
}

func (a *Arch) nonary(address uint64, opcode string) arch.Match {
	m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: opcode, Template: opcode}
	return a.fallthroughMatch(m, address+1)
}

func (a *Arch) unaryAlu(address uint64, opcode string, stmt rreil.Statement) arch.Match {
	m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: opcode, Template: opcode + " r0",
		Operands: []rreil.Value{a.r0v()}, Statements: []rreil.Statement{stmt}}
	return a.fallthroughMatch(m, address+1)
}

func (a *Arch) fallthroughMatch(m rreil.Mnemonic, next uint64) arch.Match {
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(next, arch.AddressWidth), Guard: rreil.Always()}},
		Consumed:  m.Len(),
	}
}

func (a *Arch) jump(region arch.Region, address uint64) (arch.Match, Config, error) {
	imm, err := region.Read(address+1, 2)
	if err != nil || len(imm) != 2 {
		return arch.Match{}, Config{}, fmt.Errorf("%w: jmp addr16 truncated at 0x%x", rreil.ErrDecodeError, address)
	}
	target := uint64(binary.BigEndian.Uint16(imm))
	m := rreil.Mnemonic{Start: address, End: address + 3, Opcode: "jmp", Template: "jmp #%v",
		Operands: []rreil.Value{rreil.Const(target, arch.AddressWidth)}}
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(target, arch.AddressWidth), Guard: rreil.Always()}},
		Consumed:  3,
	}, Config{}, nil
}

// conditionalJump builds jnz/jz: a single comparison statement defining a flag
// variable, plus two guarded edges (taken under the flag's given polarity,
// fallthrough under its negation), "each mnemonic may produce more than one
// guarded jump" shape.
func (a *Arch) conditionalJump(region arch.Region, address uint64, opcode string, takenWhenZero bool) (arch.Match, Config, error) {
	imm, err := region.Read(address+1, 2)
	if err != nil || len(imm) != 2 {
		return arch.Match{}, Config{}, fmt.Errorf("%w: %s addr16 truncated at 0x%x", rreil.ErrDecodeError, opcode, address)
	}
	target := uint64(binary.BigEndian.Uint16(imm))

	flagName := a.interner.Intern(fmt.Sprintf("__flag_zero_%x", address))
	flag := rreil.Var(flagName, 1)
	cmp := arch.CmpEq(flag, a.r0v(), rreil.Const(0, 8))

	m := rreil.Mnemonic{Start: address, End: address + 3, Opcode: opcode, Template: opcode + " #%v",
		Operands: []rreil.Value{rreil.Const(target, arch.AddressWidth)}, Statements: []rreil.Statement{cmp}}

	takenGuard, fallGuard := rreil.FlagTrue(flag), rreil.FlagFalse(flag)
	if !takenWhenZero {
		takenGuard, fallGuard = fallGuard, takenGuard
	}

	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps: []arch.Jump{
			{Target: rreil.Const(target, arch.AddressWidth), Guard: takenGuard},
			{Target: rreil.Const(address+3, arch.AddressWidth), Guard: fallGuard},
		},
		Consumed: 3,
	}, Config{}, nil
}
