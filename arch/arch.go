// Package arch defines the decoder-driver parameter object: the Architecture
// interface per-ISA decoders implement, and the Driver that iterates it while
// threading the skip-flag mechanism through consecutive decode steps. Concrete
// architectures live in sibling packages (arch/testarch, arch/avr); per-ISA
// instruction semantics themselves are explicitly out of core scope.
package arch

import "github.com/das-labor/panopticon-sub002/rreil"

// AddressWidth is the bit width used for address-valued Values
// (jump targets, load/store addresses) throughout the core.
const AddressWidth rreil.Width = 64

// Region is the byte view an Architecture decodes from (: Region.Read).
// Implementations should make Read cheap and may return a partial slice at
// image boundaries rather than erroring, matching the external-interface
// contract.
type Region interface {
	Read(offset, length uint64) ([]byte, error)
}

// Jump is one outgoing control-flow edge produced by a decode step: a
// target Value (constant or symbolic) and the Guard under which it's
// taken.
type Jump struct {
	Target rreil.Value
	Guard  rreil.Guard
}

// Match is the result of one Architecture.Decode call: the mnemonics
// matched at the requested address, the outgoing jump edges, and the
// number of tokens (bytes, for every architecture in this module)
// consumed.
type Match struct {
	Mnemonics []rreil.Mnemonic
	Jumps     []Jump
	Consumed  uint64
}

// Architecture is the parameter object the decoder driver and function builder
// are generic over. C is the architecture-specific configuration threaded
// through decode calls — program-counter width, flash size, a pending skip-
// flag, or nothing at all for the simplest architectures.
type Architecture[C any] interface {
	// InitialConfig returns the configuration a fresh worklist starts
	// with.
	InitialConfig() C

	// Decode matches one step of architecture-specific instructions
	// starting at address and returns the resulting Match together with
	// the (possibly updated) configuration.
	Decode(region Region, address uint64, config C) (Match, C, error)
}

// SkipState is implemented by configuration types for architectures that
// support AVR-style conditional instruction skipping. Go generics can't express
// "C implements this interface only sometimes", so the Driver discovers support
// via a type assertion on the live config value.
type SkipState interface {
	// PendingSkip reports a guard recorded by a prior decode step and
	// not yet consumed, if any.
	PendingSkip() (guard rreil.Guard, ok bool)
	// ClearSkip clears any pending skip guard.
	ClearSkip()
}
