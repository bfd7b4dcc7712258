package wire

import (
	"encoding/binary"
	"fmt"
)

// Int32Bytes encodes n as 4 big-endian bytes, independent of host order.
func Int32Bytes(n int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

// Int64Bytes encodes n as 8 big-endian bytes, independent of host order.
func Int64Bytes(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

// Int32FromBytes decodes a 4-byte big-endian integer from the start of b.
// The input is never mutated.
func Int32FromBytes(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: got %d bytes, want 4", ErrCorrupt, len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Int64FromBytes decodes an 8-byte big-endian integer from the start of b.
// The input is never mutated.
func Int64FromBytes(b []byte) (int64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("%w: got %d bytes, want 8", ErrCorrupt, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// StripLeadingZeros returns the shortest suffix of b with no leading zero
// byte, as a copy. An all-zero (or empty) input yields a single zero byte.
// Big-integer magnitudes are normalized this way before identity hashing so
// a two's-complement sign byte cannot change a key's identity.
func StripLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	if len(b) == 0 {
		return []byte{0}
	}
	out := make([]byte, len(b)-i)
	copy(out, b[i:])
	return out
}
