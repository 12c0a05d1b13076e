package rreil

import "fmt"

// BasicBlock is a contiguous address range and an ordered sequence of Mnemonics
// covering exactly that range with no gaps. No mnemonic inside a block ends
// control flow except the last, whose outgoing CFG edges (held separately, on
// the owning Function's CFG) encode the possible successors.
type BasicBlock struct {
	Start, End uint64
	Mnemonics  []Mnemonic
}

// Len returns the byte length of the block's address range.
func (b *BasicBlock) Len() uint64 { return b.End - b.Start }

// Contains reports whether addr falls within [Start, End).
func (b *BasicBlock) Contains(addr uint64) bool {
	return addr >= b.Start && addr < b.End
}

// Statements returns a flat, mutable-in-place view over every Statement
// in the block in execution order, flattening across Mnemonics. Pointers
// remain valid until the block's Mnemonics slice is reallocated (e.g. by
// PrependSynthetic); callers that need to survive that should re-fetch.
func (b *BasicBlock) Statements() []*Statement {
	var out []*Statement
	for mi := range b.Mnemonics {
		m := &b.Mnemonics[mi]
		for si := range m.Statements {
			out = append(out, &m.Statements[si])
		}
	}
	return out
}

// ReverseStatements is Statements in reverse execution order.
func (b *BasicBlock) ReverseStatements() []*Statement {
	fwd := b.Statements()
	for i, j := 0, len(fwd)-1; i < j; i, j = i+1, j-1 {
		fwd[i], fwd[j] = fwd[j], fwd[i]
	}
	return fwd
}

// RewriteStatements calls fn once per Statement, in execution order, with a
// mutable reference: the in-place rewrite API requires for the SSA renaming
// pass.
func (b *BasicBlock) RewriteStatements(fn func(*Statement)) {
	for _, s := range b.Statements() {
		fn(s)
	}
}

// PrependSynthetic inserts a synthetic Mnemonic (opcode "__init" or "__phi") at
// the head of the block. If an existing leading synthetic mnemonic with the
// same opcode is present, it is removed first so that re-running the pass that
// calls this is idempotent (step 1).
func (b *BasicBlock) PrependSynthetic(m Mnemonic) {
	if !m.Synthetic() {
		panic("rreil: PrependSynthetic requires an opcode beginning with __")
	}
	if len(b.Mnemonics) > 0 && b.Mnemonics[0].Opcode == m.Opcode {
		b.Mnemonics = b.Mnemonics[1:]
	}
	b.Mnemonics = append([]Mnemonic{m}, b.Mnemonics...)
}

// LeadingSynthetic returns the block's leading synthetic mnemonic with
// the given opcode, if present.
func (b *BasicBlock) LeadingSynthetic(opcode string) (*Mnemonic, bool) {
	if len(b.Mnemonics) == 0 || b.Mnemonics[0].Opcode != opcode {
		return nil, false
	}
	return &b.Mnemonics[0], true
}

func (b *BasicBlock) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", b.Start, b.End)
}
