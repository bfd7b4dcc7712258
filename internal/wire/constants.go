package wire

const (
	// FormatVersion is the single wire format version this package emits
	// and accepts. It is the first byte of every message header.
	FormatVersion byte = 0x00

	// KeyHashLen is the length in bytes of a key-identity hash as it
	// appears on the wire.
	KeyHashLen = 4

	// HeaderLen is the total message header length: one format-version
	// byte followed by the key-identity hash.
	HeaderLen = 1 + KeyHashLen
)
