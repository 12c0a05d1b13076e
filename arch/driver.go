package arch

import "github.com/das-labor/panopticon-sub002/rreil"

// Driver steps an Architecture across consecutive addresses, owning the
// threaded configuration and the skip-flag mechanism. A function.Builder holds
// one Driver per growing function and calls Step once per worklist address.
// Architectures that want SkipState support must instantiate C as a pointer
// type (e.g. *avr.Config) with pointer-receiver methods, since the skip check
// type-asserts the live config value itself.
type Driver[C any] struct {
	arch   Architecture[C]
	region Region
	config C

	pendingSkipGuard rreil.Guard
	hasPendingSkip   bool
}

// NewDriver creates a Driver seeded with the architecture's initial
// configuration.
func NewDriver[C any](a Architecture[C], region Region) *Driver[C] {
	return &Driver[C]{arch: a, region: region, config: a.InitialConfig()}
}

// Config returns the driver's current architecture configuration.
func (d *Driver[C]) Config() C {
	return d.config
}

// Step decodes exactly one architecture step at address. If the
// previous Step left a pending skip guard, Step adds to this step's
// Jumps a jump to the End of this step's first mnemonic (skipping it),
// guarded by the recorded guard, then clears the flag.
func (d *Driver[C]) Step(address uint64) (Match, error) {
	match, cfg, err := d.arch.Decode(d.region, address, d.config)
	d.config = cfg
	if err != nil {
		return Match{}, err
	}

	if d.hasPendingSkip && len(match.Mnemonics) > 0 {
		skipped := match.Mnemonics[0]
		match.Jumps = append(match.Jumps, Jump{
			Target: rreil.Const(skipped.End, AddressWidth),
			Guard:  d.pendingSkipGuard,
		})
		d.hasPendingSkip = false
	}

	if sk, ok := any(d.config).(SkipState); ok {
		if guard, has := sk.PendingSkip(); has {
			d.pendingSkipGuard = guard
			d.hasPendingSkip = true
			sk.ClearSkip()
		}
	}

	return match, nil
}
