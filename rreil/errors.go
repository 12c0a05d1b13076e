package rreil

import "errors"

// The core's error taxonomy. Each sentinel is wrapped with call-site context
// via fmt.Errorf("...: %w",...); callers distinguish taxonomy members with
// errors.Is rather than string matching.
var (
	// ErrDecodeError means no decoder matched at an address, or the
	// decoder consumed fewer tokens than required. Recoverable: attaches
	// a FailedDecode node and does not abort the enclosing build.
	ErrDecodeError = errors.New("rreil: decode error")

	// ErrEmptyRegion means the entry address cannot be read. Fatal for
	// Function construction.
	ErrEmptyRegion = errors.New("rreil: entry address unreadable")

	// ErrUnreachableBlock means a block is not reachable from the entry
	// after construction. Fatal; indicates a builder bug.
	ErrUnreachableBlock = errors.New("rreil: unreachable block")

	// ErrMissingDominator means SSA construction found a block without
	// an immediate dominator. Fatal.
	ErrMissingDominator = errors.New("rreil: missing immediate dominator")

	// ErrTypeMismatch means an Operation's operand widths are
	// inconsistent. Fatal during SSA; indicates a decoder bug.
	ErrTypeMismatch = errors.New("rreil: operand width mismatch")

	// ErrUnknownVariable means renaming or phi-filling referenced a name
	// not present in the global map. Fatal.
	ErrUnknownVariable = errors.New("rreil: unknown variable")

	// ErrDomainContract means an abstract domain implementation violated
	// a lattice property (e.g. widen decreased precision). Fatal.
	ErrDomainContract = errors.New("rreil: domain contract violated")
)
