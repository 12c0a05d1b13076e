package arch

import (
	"fmt"

	"github.com/das-labor/panopticon-sub002/rreil"
)

// ByteRegion is the simplest Region: an in-memory byte slice addressed from
// zero. Used by every test architecture and by cmd/panopticon for flat binary
// blobs; ELF/object-format parsing is explicitly out of core scope.
type ByteRegion []byte

// Read returns region[offset:offset+length]. Returns a wrapped
// ErrDecodeError if the requested range runs past the end of the
// region; function.Builder reclassifies this as ErrEmptyRegion when it
// happens at a Function's entry address, and as a recoverable
// FailedDecode node everywhere else.
func (r ByteRegion) Read(offset, length uint64) ([]byte, error) {
	if offset > uint64(len(r)) || offset+length > uint64(len(r)) {
		return nil, fmt.Errorf("%w: [0x%x, 0x%x) out of bounds for %d-byte region", rreil.ErrDecodeError, offset, offset+length, len(r))
	}
	return r[offset : offset+length], nil
}
