package avr

import (
	"testing"

	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

// TestIncDec_VFlagBugIsPreservedVerbatim locks in the upstream
// copy-paste bug: inc's overflow-flag comparison is 0x80, identical to
// dec's, even though inc's correct threshold is 0x7f. If a future change
// "fixes" this without updating the design ledger, this test should be
// the one that catches it.
func TestIncDec_VFlagBugIsPreservedVerbatim(t *testing.T) {
	in := rreil.NewInterner()
	a := New(in)
	region := arch.ByteRegion([]byte{OpInc, 0, OpDec, 0})
	d := arch.NewDriver[*Config](a, region)

	incMatch, err := d.Step(0)
	require.NoError(t, err)
	incCmp := incMatch.Mnemonics[0].Statements[0]
	incThreshold, _ := incCmp.Op.B.ConstantValue()

	decMatch, err := d.Step(2)
	require.NoError(t, err)
	decCmp := decMatch.Mnemonics[0].Statements[0]
	decThreshold, _ := decCmp.Op.B.ConstantValue()

	require.Equal(t, uint64(0x80), incThreshold, "inc's V-flag threshold must stay the buggy 0x80, not the correct 0x7f")
	require.Equal(t, incThreshold, decThreshold, "inc and dec must share the identical (buggy) threshold")
}

func TestCpse_SetsPendingSkipForDriver(t *testing.T) {
	in := rreil.NewInterner()
	a := New(in)
	// cpse r0, r1; add r2, r3; ret
	region := arch.ByteRegion([]byte{OpCpse, 0, 1, OpAdd, 2, 3, OpRet})
	d := arch.NewDriver[*Config](a, region)

	_, err := d.Step(0)
	require.NoError(t, err)

	addMatch, err := d.Step(3)
	require.NoError(t, err)
	// The driver should have appended a skip-bypass edge targeting the
	// end of the "add" mnemonic it just decoded.
	found := false
	for _, j := range addMatch.Jumps {
		if v, ok := j.Target.ConstantValue(); ok && v == addMatch.Mnemonics[0].End && j.Guard.Polarity == rreil.GuardFlagTrue {
			found = true
		}
	}
	require.True(t, found, "expected a jump bypassing the skipped mnemonic")
}

func TestRjmp_NegativeDisplacementTargetsBackward(t *testing.T) {
	in := rreil.NewInterner()
	a := New(in)
	region := arch.ByteRegion([]byte{OpRjmp, 0xFE}) // -2: targets itself
	d := arch.NewDriver[*Config](a, region)

	m, err := d.Step(0)
	require.NoError(t, err)
	require.Len(t, m.Jumps, 1)
	target, ok := m.Jumps[0].Target.ConstantValue()
	require.True(t, ok)
	require.EqualValues(t, 0, target)
}
