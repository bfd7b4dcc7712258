package wire

import "errors"

var (
	// ErrBadVersion is returned when a header's format-version byte does
	// not match FormatVersion.
	ErrBadVersion = errors.New("wire: unsupported format version")

	// ErrCorrupt is returned for malformed crypto data: truncated headers
	// or integers, signatures shorter than the minimum, and padding or
	// integrity-tag failures during decryption.
	ErrCorrupt = errors.New("wire: invalid crypto data")
)
