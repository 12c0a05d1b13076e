// Package render turns a Function's rendering-hook token stream
// (rreil.Mnemonic.Tokens) into disassembly text. The analysis core
// deliberately stops at producing tokens; this package is the renderer that
// turns them into columns of text, used by both cmd/panopticon and test
// assertions. It renders plain text rather than reaching for a terminal-color
// library, since none is available in the dependency stack this module
// draws on.
package render

import (
	"fmt"
	"io"

	"github.com/das-labor/panopticon-sub002/rreil"
)

// Function writes fn's disassembly to w, one basic block per address range, in
// disassembly order (rreil.Function.BasicBlocks). Synthetic mnemonics are
// skipped, mirroring display.rs's print_basic_block opcode.starts_with("__")
// check.
func Function(w io.Writer, fn *rreil.Function, in *rreil.Interner) error {
	if _, err := fmt.Fprintf(w, "%08x <%s>:\n", fn.EntryBlock().Start, fn.Name); err != nil {
		return err
	}
	for _, bb := range fn.BasicBlocks() {
		if err := basicBlock(w, bb.Block, in); err != nil {
			return err
		}
	}
	return nil
}

func basicBlock(w io.Writer, bb *rreil.BasicBlock, in *rreil.Interner) error {
	for i := range bb.Mnemonics {
		m := &bb.Mnemonics[i]
		if m.Synthetic() {
			continue
		}
		if _, err := fmt.Fprintf(w, "%8x: ", m.Start); err != nil {
			return err
		}
		if err := mnemonic(w, m, in); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// mnemonic renders one Mnemonic's opcode and operands by walking its
// Tokens stream, consuming one Operands entry per Variable/Pointer
// token, exactly as display.rs's print_mnemonic consumes one Rvalue per
// MnemonicFormatToken.
func mnemonic(w io.Writer, m *rreil.Mnemonic, in *rreil.Interner) error {
	if _, err := fmt.Fprintf(w, "%-6s ", m.Opcode); err != nil {
		return err
	}
	operands := m.Operands
	next := 0
	for _, tok := range m.Tokens() {
		switch tok.Kind {
		case rreil.TokenLiteral:
			if _, err := fmt.Fprint(w, tok.Text); err != nil {
				return err
			}
		case rreil.TokenVariable:
			if next >= len(operands) {
				if _, err := fmt.Fprint(w, "?"); err != nil {
					return err
				}
				continue
			}
			if err := variable(w, operands[next], tok.HasSign, in); err != nil {
				return err
			}
			next++
		case rreil.TokenPointer:
			if next >= len(operands) {
				if _, err := fmt.Fprint(w, "?"); err != nil {
					return err
				}
				continue
			}
			if err := pointer(w, operands[next]); err != nil {
				return err
			}
			next++
		}
	}
	return nil
}

func variable(w io.Writer, v rreil.Value, hasSign bool, in *rreil.Interner) error {
	if c, ok := v.ConstantValue(); ok {
		if hasSign {
			_, err := fmt.Fprintf(w, "%d", int64(c))
			return err
		}
		_, err := fmt.Fprintf(w, "%x", c)
		return err
	}
	_, err := fmt.Fprint(w, v.Format(in))
	return err
}

func pointer(w io.Writer, v rreil.Value) error {
	if c, ok := v.ConstantValue(); ok {
		_, err := fmt.Fprintf(w, "%#x", c)
		return err
	}
	_, err := fmt.Fprint(w, v.String())
	return err
}
