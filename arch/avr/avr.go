// Package avr is a representative subset of the AVR 8-bit microcontroller
// architecture. Full AVR opcode-table decoding (all ~130 real 16-bit-word
// encodings) is out of scope here; what's implemented is enough instructions
// to exercise register arithmetic with status flags, the skip-flag driver
// mechanism (cpse/sbrc), and relative branches, using a simplified
// one-byte-opcode encoding rather than AVR's real bit-packed 16-bit words. Two
// flag-update quirks are preserved verbatim rather than fixed: both inc and
// dec compute their overflow (V) flag by comparing the register's
// pre-operation value against the literal
// 0x80, but inc's correct overflow condition is pre-value == 0x7f (the positive
// extreme, since incrementing it is what overflows a signed byte) — inc's check
// was evidently copy-pasted from dec's and never adjusted.
package avr

import (
	"fmt"

	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/rreil"
)

const (
	OpAdd  = 0x10 // add rd, rr         (3 bytes: opcode, rd, rr)
	OpSub  = 0x11 // sub rd, rr         (3 bytes)
	OpInc  = 0x12 // inc rd             (2 bytes) -- preserves the V-flag bug
	OpDec  = 0x13 // dec rd             (2 bytes)
	OpCpse = 0x14 // cpse rd, rr        (3 bytes) -- skip-flag mechanism
	OpSbrc = 0x15 // sbrc rd, bit       (3 bytes) -- skip-flag mechanism
	OpRjmp = 0x16 // rjmp rel8          (2 bytes, signed byte displacement)
	OpBrne = 0x17 // brne rel8          (2 bytes, branch if Z==0)
	OpBreq = 0x18 // breq rel8          (2 bytes, branch if Z==1)
	OpRet  = 0x19 // ret                (1 byte)
)

// Config carries the AVR decoder's skip-flag state across Driver.Step
// calls. Must be used as
// *Config when instantiating arch.Driver/arch.Architecture so that
// arch.SkipState's pointer-receiver methods are visible through the
// type assertion in arch.Driver.Step.
type Config struct {
	skipGuard rreil.Guard
	hasSkip   bool
}

func (c *Config) PendingSkip() (rreil.Guard, bool) { return c.skipGuard, c.hasSkip }
func (c *Config) ClearSkip()                       { c.hasSkip = false }
func (c *Config) setSkip(g rreil.Guard)            { c.skipGuard, c.hasSkip = g, true }

// Arch is the AVR Architecture[*Config] implementation. Registers R0..R31
// and the five status flags are interned once and reused across every
// decode call.
type Arch struct {
	interner *rreil.Interner
	regs     [32]rreil.VarName
	flagZ    rreil.VarName
	flagN    rreil.VarName
	flagV    rreil.VarName
	flagS    rreil.VarName
	flagC    rreil.VarName
}

// New creates an avr.Arch whose registers and flags are interned into in.
func New(in *rreil.Interner) *Arch {
	a := &Arch{interner: in}
	for i := range a.regs {
		a.regs[i] = in.Intern(fmt.Sprintf("r%d", i))
	}
	a.flagZ = in.Intern("Z")
	a.flagN = in.Intern("N")
	a.flagV = in.Intern("V")
	a.flagS = in.Intern("S")
	a.flagC = in.Intern("C")
	return a
}

func (a *Arch) InitialConfig() *Config { return &Config{} }

func (a *Arch) reg(i uint8) rreil.Value { return rreil.Var(a.regs[i%32], 8) }
func (a *Arch) flag(n rreil.VarName) rreil.Value { return rreil.Var(n, 1) }

// Decode implements arch.Architecture[*Config].
func (a *Arch) Decode(region arch.Region, address uint64, cfg *Config) (arch.Match, *Config, error) {
	head, err := region.Read(address, 1)
	if err != nil || len(head) == 0 {
		return arch.Match{}, cfg, fmt.Errorf("%w: cannot read opcode byte at 0x%x", rreil.ErrDecodeError, address)
	}
	op := head[0]

	switch op {
	case OpAdd, OpSub:
		return a.binaryArith(region, address, op == OpAdd, cfg)
	case OpInc:
		return a.incDec(region, address, true, cfg)
	case OpDec:
		return a.incDec(region, address, false, cfg)
	case OpCpse:
		return a.cpse(region, address, cfg)
	case OpSbrc:
		return a.sbrc(region, address, cfg)
	case OpRjmp:
		return a.rjmp(region, address, cfg)
	case OpBrne:
		return a.branch(region, address, "brne", false, cfg)
	case OpBreq:
		return a.branch(region, address, "breq", true, cfg)
	case OpRet:
		m := rreil.Mnemonic{Start: address, End: address + 1, Opcode: "ret", Template: "ret",
			Statements: []rreil.Statement{rreil.NewReturn()}}
		return arch.Match{Mnemonics: []rreil.Mnemonic{m}, Consumed: 1}, cfg, nil
	default:
		return arch.Match{}, cfg, fmt.Errorf("%w: opcode 0x%02x at 0x%x", rreil.ErrDecodeError, op, address)
	}
}

func (a *Arch) operandBytes(region arch.Region, address uint64, n uint64) ([]byte, error) {
	b, err := region.Read(address+1, n)
	if err != nil || uint64(len(b)) != n {
		return nil, fmt.Errorf("%w: operand bytes truncated at 0x%x", rreil.ErrDecodeError, address)
	}
	return b, nil
}

// binaryArith builds add/sub with Z/N/S flag updates (S = V xor N; V
// itself is not written here), grounded on semantic.rs's adc/sub bodies
// (carry handling collapsed: no C or half-carry H flag is computed).
func (a *Arch) binaryArith(region arch.Region, address uint64, isAdd bool, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 2)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	rd, rr := a.reg(ops[0]), a.reg(ops[1])
	opcode := "sub"
	stmt := arch.Sub(rd, rd, rr)
	if isAdd {
		opcode, stmt = "add", arch.Add(rd, rd, rr)
	}
	stmts := []rreil.Statement{
		stmt,
		arch.CmpEq(a.flag(a.flagZ), rd, rreil.Const(0, 8)),
		arch.CmpLtS(a.flag(a.flagN), rd, rreil.Const(0, 8)),
		arch.Xor(a.flag(a.flagS), a.flag(a.flagV), a.flag(a.flagN)),
	}
	m := rreil.Mnemonic{Start: address, End: address + 3, Opcode: opcode, Template: opcode + " r%v, r%v",
		Operands: []rreil.Value{rd, rr}, Statements: stmts}
	return a.fallthroughWithSkip(m, address+3, cfg), cfg, nil
}

// incDec builds inc/dec with the preserved V-flag bug: both compare the
// pre-operation register value to the literal 0x80, though inc's correct
// condition would be 0x7f.
func (a *Arch) incDec(region arch.Region, address uint64, isInc bool, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 1)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	rd := a.reg(ops[0])
	opcode := "dec"
	arith := arch.Sub(rd, rd, rreil.Const(1, 8))
	if isInc {
		opcode, arith = "inc", arch.Add(rd, rd, rreil.Const(1, 8))
	}
	stmts := []rreil.Statement{
		arch.CmpEq(a.flag(a.flagV), rd, rreil.Const(0x80, 8)), // bug preserved: inc should compare to 0x7f
		arith,
		arch.CmpEq(a.flag(a.flagZ), rd, rreil.Const(0, 8)),
		arch.CmpLtS(a.flag(a.flagN), rd, rreil.Const(0, 8)),
		arch.Xor(a.flag(a.flagS), a.flag(a.flagV), a.flag(a.flagN)),
	}
	m := rreil.Mnemonic{Start: address, End: address + 2, Opcode: opcode, Template: opcode + " r%v",
		Operands: []rreil.Value{rd}, Statements: stmts}
	return a.fallthroughWithSkip(m, address+2, cfg), cfg, nil
}

// cpse: compare rd and rr, and either
// emit a direct guarded skip edge (when this step already knows the
// next instruction's length — here, never, since this subset doesn't
// special-case single-word-only successors) or record the comparison's
// guard as a pending skip for the driver to resolve once the next
// instruction is decoded.
func (a *Arch) cpse(region arch.Region, address uint64, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 2)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	rd, rr := a.reg(ops[0]), a.reg(ops[1])
	skipFlag := a.interner.Intern(fmt.Sprintf("__skip_eq_%x", address))
	flag := rreil.Var(skipFlag, 1)
	cmp := arch.CmpEq(flag, rd, rr)
	m := rreil.Mnemonic{Start: address, End: address + 3, Opcode: "cpse", Template: "cpse r%v, r%v",
		Operands: []rreil.Value{rd, rr}, Statements: []rreil.Statement{cmp}}
	cfg.setSkip(rreil.FlagTrue(flag))
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(address+3, arch.AddressWidth), Guard: rreil.FlagFalse(flag)}},
		Consumed:  3,
	}, cfg, nil
}

// sbrc builds "skip if bit clear": skip the following mnemonic when bit
// `bit` of rd is 0.
func (a *Arch) sbrc(region arch.Region, address uint64, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 2)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	rd, bit := a.reg(ops[0]), ops[1]
	skipFlag := a.interner.Intern(fmt.Sprintf("__skip_bit_%x", address))
	flag := rreil.Var(skipFlag, 1)
	masked := a.interner.Intern(fmt.Sprintf("__sbrc_mask_%x", address))
	maskedVal := rreil.Var(masked, 8)
	stmts := []rreil.Statement{
		arch.And(maskedVal, rd, rreil.Const(1<<bit, 8)),
		arch.CmpEq(flag, maskedVal, rreil.Const(0, 8)),
	}
	m := rreil.Mnemonic{Start: address, End: address + 3, Opcode: "sbrc", Template: "sbrc r%v, #%v",
		Operands: []rreil.Value{rd, rreil.Const(uint64(bit), 8)}, Statements: stmts}
	cfg.setSkip(rreil.FlagTrue(flag))
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(address+3, arch.AddressWidth), Guard: rreil.FlagFalse(flag)}},
		Consumed:  3,
	}, cfg, nil
}

func (a *Arch) rjmp(region arch.Region, address uint64, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 1)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	target := rjmpTarget(address, ops[0])
	m := rreil.Mnemonic{Start: address, End: address + 2, Opcode: "rjmp", Template: "rjmp #%v",
		Operands: []rreil.Value{rreil.Const(target, arch.AddressWidth)}}
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(target, arch.AddressWidth), Guard: rreil.Always()}},
		Consumed:  2,
	}, cfg, nil
}

func (a *Arch) branch(region arch.Region, address uint64, opcode string, takenWhenZero bool, cfg *Config) (arch.Match, *Config, error) {
	ops, err := a.operandBytes(region, address, 1)
	if err != nil {
		return arch.Match{}, cfg, err
	}
	target := rjmpTarget(address, ops[0])
	m := rreil.Mnemonic{Start: address, End: address + 2, Opcode: opcode, Template: opcode + " #%v",
		Operands: []rreil.Value{rreil.Const(target, arch.AddressWidth)}}
	z := a.flag(a.flagZ)
	taken, fall := rreil.FlagTrue(z), rreil.FlagFalse(z)
	if !takenWhenZero {
		taken, fall = fall, taken
	}
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps: []arch.Jump{
			{Target: rreil.Const(target, arch.AddressWidth), Guard: taken},
			{Target: rreil.Const(address+2, arch.AddressWidth), Guard: fall},
		},
		Consumed: 2,
	}, cfg, nil
}

func rjmpTarget(address uint64, rel uint8) uint64 {
	return uint64(int64(address) + 2 + int64(int8(rel)))
}

func (a *Arch) fallthroughWithSkip(m rreil.Mnemonic, next uint64, cfg *Config) arch.Match {
	return arch.Match{
		Mnemonics: []rreil.Mnemonic{m},
		Jumps:     []arch.Jump{{Target: rreil.Const(next, arch.AddressWidth), Guard: rreil.Always()}},
		Consumed:  m.Len(),
	}
}
