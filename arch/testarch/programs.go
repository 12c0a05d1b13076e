package testarch

// The six programs below are the literal byte streams exercised by the
// concrete scenarios in the test suite: a single straight-line block, a
// diverging/converging branch, a self-loop, an indirect jump resolvable
// to a small finite target set, an SSA phi-placement diamond, and a
// tight counting loop that exceeds the K-set domain's cardinality bound.
// Each is laid out by hand so that every jump target lands exactly on
// another instruction's start address — there is no assembler here, so
// addresses are computed by hand and must stay in sync with the opcode
// lengths in testarch.go if either changes.

// SingleBlock: inc; inc; ret. One basic block, no control-flow edges
// besides the terminating Return.
var SingleBlock = []byte{OpInc, OpInc, OpRet}

// Branch: diverges on r0's zero-ness, each arm does different (reads a
// var, not yet in SSA form) work, then rejoins at a common ret.
//
//	0: jnz #7   (not-zero -> 7)
//	3: inc      (zero path)
//	4: jmp #8   (join)
//	7: dec      (not-zero path)
//	8: ret
var Branch = []byte{
	OpJnz, 0x00, 0x07,
	OpInc,
	OpJmp, 0x00, 0x08,
	OpDec,
	OpRet,
}

// SelfLoop: increments r0 until it is zero (wraps at 256), looping back
// to its own header — a single block that is its own predecessor.
//
//	0: inc
//	1: jnz #0
//	4: ret
var SelfLoop = []byte{
	OpInc,
	OpJnz, 0x00, 0x00,
	OpRet,
}

// IndirectResolution: sets r1 to one of two small constants depending on
// a branch, then jumps through r1. A sound K-set over r1 at the ijmp
// resolves to exactly {13, 14}, so the resolver should discover both
// successors and no more.
//
//	0:  jnz #9
//	3:  mov r0,#13 ; mov r1,r0
//	6:  jmp #12
//	9:  mov r0,#14 ; mov r1,r0
//	12: ijmp
//	13: ret
//	14: ret
var IndirectResolution = []byte{
	OpJnz, 0x00, 0x09,
	OpMovImm, 0x0D,
	OpMovR1R0,
	OpJmp, 0x00, 0x0C,
	OpMovImm, 0x0E,
	OpMovR1R0,
	OpIJmp,
	OpRet,
	OpRet,
}

// SSADiamond: a diamond where each arm defines r0 with a different
// constant before both converge on a single use (inc r0) — the
// canonical case requiring a phi node at the join block.
//
//	0:  jnz #8
//	3:  mov r0,#1
//	5:  jmp #11
//	8:  mov r0,#2
//	10: nop
//	11: inc r0
//	12: ret
var SSADiamond = []byte{
	OpJnz, 0x00, 0x08,
	OpMovImm, 0x01,
	OpJmp, 0x00, 0x0B,
	OpMovImm, 0x02,
	OpNop,
	OpInc,
	OpRet,
}

// KSetPrecisionBound: mov r0,#0; loop: inc; jnz loop; ret. The loop counter's
// reachable value set has 256 members, which exceeds the K-set domain's K_MAX
// (10,) well before the loop's single back-edge converges — exercising the
// widen-to-Top path rather than the exact-enumeration path exercised by
// IndirectResolution. 0: mov r0,#0 2: inc 3: jnz #2 6: ret
var KSetPrecisionBound = []byte{
	OpMovImm, 0x00,
	OpInc,
	OpJnz, 0x00, 0x02,
	OpRet,
}
