// Package keys implements the concrete key types of the key-set format:
// their capability surfaces (sign, verify, encrypt, decrypt), identity
// hashing, padding resolution, generation, and secret-material disposal.
//
// Capabilities are expressed as interfaces. A key advertises a capability
// by implementing the interface; callers discover absence with a failed
// type assertion, not an error.
package keys

import (
	"errors"
	"io"
)

// Type identifies a concrete key algorithm family.
type Type string

const (
	TypeHMACSHA1    Type = "HMAC_SHA1"
	TypeAES         Type = "AES"
	TypeRSAPriv     Type = "RSA_PRIV"
	TypeRSAPub      Type = "RSA_PUB"
	TypeDSAPriv     Type = "DSA_PRIV"
	TypeDSAPub      Type = "DSA_PUB"
	TypeEd25519Priv Type = "ED25519_PRIV"
	TypeEd25519Pub  Type = "ED25519_PUB"
)

var (
	// ErrInvalidKeyType is returned for structurally invalid key
	// configuration: unrecognized padding tags, out-of-bounds key sizes,
	// missing required parameters.
	ErrInvalidKeyType = errors.New("keys: invalid key type")

	// ErrUnsupportedOperation is returned when an operation is requested
	// on a key type that cannot provide it, such as generating key
	// material for a public key.
	ErrUnsupportedOperation = errors.New("keys: unsupported operation")

	// ErrKeyDisposed is returned by stream constructors on a key whose
	// secret material has been scrubbed.
	ErrKeyDisposed = errors.New("keys: key has been disposed")
)

// Key is the capability every key type provides.
type Key interface {
	// Type reports the key's algorithm family.
	Type() Type

	// Hash returns the key-identity hash: a pure function of the key's
	// canonical public parameters, fixed at construction.
	Hash() []byte

	// Close scrubs the key's secret material and poisons the key. Streams
	// constructed before Close have undefined behavior if used after it;
	// constructing new streams fails with ErrKeyDisposed.
	Close() error
}

// SignStream accumulates a message and produces a signature on finalize.
type SignStream interface {
	io.Writer
	Sign() ([]byte, error)
}

// VerifyStream accumulates a message and compares a supplied signature on
// finalize. A mismatch is a normal false result, never an error.
type VerifyStream interface {
	io.Writer
	Verify(sig []byte) (bool, error)
}

// Signer is a key that can produce signatures.
type Signer interface {
	Key
	NewSignStream() (SignStream, error)
}

// Verifier is a key that can check signatures.
type Verifier interface {
	Key
	NewVerifyStream() (VerifyStream, error)
}

// Encrypter is a key that can encrypt. The header bytes are bound into the
// output's integrity protection where the algorithm has one; the returned
// ciphertext does not include the header itself.
type Encrypter interface {
	Key
	Encrypt(header, plaintext []byte) ([]byte, error)
	NewEncryptWriter(sink io.Writer, header []byte) (io.WriteCloser, error)
}

// Decrypter is a key that can decrypt a payload produced by the matching
// Encrypter. The payload excludes the header, which is passed separately
// for integrity checking.
type Decrypter interface {
	Key
	Decrypt(header, payload []byte) ([]byte, error)
	NewDecryptReader(src io.Reader, header []byte) (io.ReadCloser, error)
}
