package wire

import (
	"fmt"
	"io"
)

// WriteHeader builds a message header for the given key-identity hash:
// FormatVersion followed by the hash, HeaderLen bytes total.
func WriteHeader(keyHash []byte) []byte {
	out := make([]byte, HeaderLen)
	out[0] = FormatVersion
	copy(out[1:], keyHash)
	return out
}

// ParseHeader parses a header from the front of a finite buffer. It
// validates the buffer length and the format-version byte, and returns the
// key-identity hash (a copy) plus the remaining payload bytes.
func ParseHeader(data []byte) (keyHash, rest []byte, err error) {
	if len(data) < HeaderLen {
		return nil, nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrCorrupt, len(data), HeaderLen)
	}
	if data[0] != FormatVersion {
		return nil, nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrBadVersion, data[0], FormatVersion)
	}
	keyHash = make([]byte, KeyHashLen)
	copy(keyHash, data[1:HeaderLen])
	return keyHash, data[HeaderLen:], nil
}

// ReadHeader reads exactly HeaderLen bytes from a live stream and returns
// them raw. Unlike ParseHeader it performs no version check: the caller
// validates the first byte, which lets it start consuming the stream before
// deciding how to fail.
func ReadHeader(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	return header, nil
}
