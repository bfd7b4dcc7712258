package keys

import (
	"crypto/hmac"
	"crypto/sha1"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/40a/keyczar-go/internal/wire"
)

const (
	// HMACKeySize is the secret size in bytes for generated HMAC keys.
	HMACKeySize = 32

	// HMACSigSize is the length of an HMAC-SHA1 signature.
	HMACSigSize = sha1.Size

	hmacKeyMinSize = 16
	hmacKeyMaxSize = 64
)

// HMACKey is a symmetric HMAC-SHA1 signing and verification key. The secret
// lives in a locked, frozen buffer and is wiped by Close.
type HMACKey struct {
	material *memguard.LockedBuffer
	hash     []byte
}

// NewHMACKey constructs an HMAC key from raw secret bytes. The input slice
// is consumed: it is wiped as the secret moves into locked memory.
func NewHMACKey(material []byte) (*HMACKey, error) {
	if len(material) < hmacKeyMinSize || len(material) > hmacKeyMaxSize {
		return nil, fmt.Errorf("%w: HMAC key size %d outside [%d, %d]",
			ErrInvalidKeyType, len(material), hmacKeyMinSize, hmacKeyMaxSize)
	}

	hash := wire.KeyHashPrefixed(wire.KeyHashLen, material)

	buf := memguard.NewBufferFromBytes(material)
	buf.Freeze()

	return &HMACKey{material: buf, hash: hash}, nil
}

// GenerateHMACKey creates a new random HMAC key.
func GenerateHMACKey() (*HMACKey, error) {
	material, err := randBytes(HMACKeySize)
	if err != nil {
		return nil, err
	}
	return NewHMACKey(material)
}

func (k *HMACKey) Type() Type   { return TypeHMACSHA1 }
func (k *HMACKey) Hash() []byte { return k.hash }

// Close wipes the secret material. The key cannot construct streams after.
func (k *HMACKey) Close() error {
	k.material.Destroy()
	return nil
}

// NewSignStream returns a stream producing a 20-byte HMAC-SHA1 signature.
func (k *HMACKey) NewSignStream() (SignStream, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}
	mac := hmac.New(sha1.New, k.material.Bytes())
	return &digestSignStream{
		h: mac,
		sign: func(digest []byte) ([]byte, error) {
			return digest, nil
		},
	}, nil
}

// NewVerifyStream returns a stream comparing a supplied signature against
// the recomputed HMAC in constant time.
func (k *HMACKey) NewVerifyStream() (VerifyStream, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}
	mac := hmac.New(sha1.New, k.material.Bytes())
	return &digestVerifyStream{
		h: mac,
		verify: func(digest, sig []byte) (bool, error) {
			return hmac.Equal(digest, sig), nil
		},
	}, nil
}

// signRaw computes the HMAC of data directly. Used by the AES cipher stage
// for its integrity tag.
func (k *HMACKey) signRaw(data ...[]byte) ([]byte, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}
	mac := hmac.New(sha1.New, k.material.Bytes())
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil), nil
}

// Material exposes the raw secret for key-set serialization by the loading
// collaborator. The returned slice is a copy.
func (k *HMACKey) Material() ([]byte, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}
	out := make([]byte, k.material.Size())
	copy(out, k.material.Bytes())
	return out, nil
}
