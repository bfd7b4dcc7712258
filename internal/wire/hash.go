package wire

import "crypto/sha1"

// KeyHash digests the concatenation of parts with SHA-1 and returns the
// first size bytes. No length framing is added: callers must only use this
// form when part boundaries are already fixed by prior normalization
// (PKCS-padded RSA identity hashing).
func KeyHash(size int, parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	out := make([]byte, size)
	copy(out, sum)
	return out
}

// KeyHashPrefixed digests parts with SHA-1, each part preceded by its
// 4-byte big-endian length, and returns the first size bytes. This is the
// default identity hash: the framing makes variable-length components
// unambiguous. It is not interchangeable with KeyHash.
func KeyHashPrefixed(size int, parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(Int32Bytes(int32(len(p))))
		h.Write(p)
	}
	sum := h.Sum(nil)
	out := make([]byte, size)
	copy(out, sum)
	return out
}
