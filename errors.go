package keyczar

import (
	"errors"

	"github.com/40a/keyczar-go/internal/keys"
	"github.com/40a/keyczar-go/internal/wire"
)

// The error taxonomy of the format. Sentinels defined by the internal
// layers are re-exported by identity so errors.Is works across layers.
var (
	// ErrBadVersion indicates a header whose format-version byte does not
	// match the supported protocol version.
	ErrBadVersion = wire.ErrBadVersion

	// ErrInvalidData indicates a malformed payload: truncated header,
	// signature shorter than the minimum, or padding/tag verification
	// failure during decryption.
	ErrInvalidData = wire.ErrCorrupt

	// ErrInvalidKeyType indicates structurally invalid key configuration:
	// an unrecognized padding tag, an out-of-bounds key size, or a key
	// document that does not match its declared type.
	ErrInvalidKeyType = keys.ErrInvalidKeyType

	// ErrUnsupportedOperation indicates an operation the key or key set
	// cannot provide at the type level, such as signing with an
	// encryption-purpose set, or generating material for a public key.
	ErrUnsupportedOperation = keys.ErrUnsupportedOperation

	// ErrKeyDisposed indicates an operation on a key or key set whose
	// secret material has already been scrubbed.
	ErrKeyDisposed = keys.ErrKeyDisposed

	// ErrKeyNotFound indicates that no key version in the set matches the
	// required identity hash or status, such as signing without a primary
	// version.
	ErrKeyNotFound = errors.New("keyczar: no matching key version")
)
