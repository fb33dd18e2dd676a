// Package sampler implements the screen content sampler: a long-lived
// service that averages the panel region above the light sensor, and the
// client the correction engine uses to query it.
package sampler

import (
	"encoding/binary"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
)

// Command is the only request token. On the wire it is NUL-terminated.
const Command = "take_screenshot"

// ReplySize is the native layout of {uint32 r, g, b; int64 timestamp}:
// the timestamp is 8-byte aligned, leaving 4 bytes of padding after b.
const ReplySize = 24

const timestampOffset = 16

// Sample is the average color of the capture region and the boottime at
// which it was captured.
type Sample struct {
	R, G, B   uint32
	Timestamp int64
}

// MarshalBinary encodes the reply record in native byte order.
func (s Sample) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ReplySize)
	binary.NativeEndian.PutUint32(buf[0:], s.R)
	binary.NativeEndian.PutUint32(buf[4:], s.G)
	binary.NativeEndian.PutUint32(buf[8:], s.B)
	binary.NativeEndian.PutUint64(buf[timestampOffset:], uint64(s.Timestamp))
	return buf, nil
}

// UnmarshalBinary decodes a reply record; any other length is rejected.
func (s *Sample) UnmarshalBinary(buf []byte) error {
	if len(buf) != ReplySize {
		return apperrors.Newf(apperrors.InvalidReply, "reply is %d bytes, want %d", len(buf), ReplySize)
	}
	s.R = binary.NativeEndian.Uint32(buf[0:])
	s.G = binary.NativeEndian.Uint32(buf[4:])
	s.B = binary.NativeEndian.Uint32(buf[8:])
	s.Timestamp = int64(binary.NativeEndian.Uint64(buf[timestampOffset:]))
	return nil
}
