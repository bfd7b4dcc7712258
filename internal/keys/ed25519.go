package keys

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/40a/keyczar-go/internal/wire"
)

// Ed25519PublicKey verifies Ed25519 signatures. Ed25519 signs the message
// directly rather than a precomputed digest, so its streams buffer the
// message.
type Ed25519PublicKey struct {
	key      ed25519.PublicKey
	hash     []byte
	disposed bool
}

// NewEd25519PublicKey constructs a public key from its 32 raw bytes.
func NewEd25519PublicKey(material []byte) (*Ed25519PublicKey, error) {
	if len(material) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key size %d, want %d",
			ErrInvalidKeyType, len(material), ed25519.PublicKeySize)
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, material)
	return &Ed25519PublicKey{
		key:  key,
		hash: wire.KeyHashPrefixed(wire.KeyHashLen, material),
	}, nil
}

func (k *Ed25519PublicKey) Type() Type   { return TypeEd25519Pub }
func (k *Ed25519PublicKey) Hash() []byte { return k.hash }

// Material returns the raw public key bytes.
func (k *Ed25519PublicKey) Material() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Close poisons the key; the public point is not secret.
func (k *Ed25519PublicKey) Close() error {
	k.disposed = true
	return nil
}

// NewVerifyStream returns a stream checking a 64-byte Ed25519 signature.
// Wrong-length signatures are a mismatch, not an error.
func (k *Ed25519PublicKey) NewVerifyStream() (VerifyStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: Ed25519 public key", ErrKeyDisposed)
	}
	pub := k.key
	return &bufferVerifyStream{
		verify: func(message, sig []byte) (bool, error) {
			if len(sig) != ed25519.SignatureSize {
				return false, nil
			}
			return ed25519.Verify(pub, message, sig), nil
		},
	}, nil
}

// Ed25519PrivateKey produces Ed25519 signatures. The 32-byte seed lives in
// a locked buffer; the expanded key is rebuilt per stream and wiped.
type Ed25519PrivateKey struct {
	seed *memguard.LockedBuffer
	pub  *Ed25519PublicKey
}

// NewEd25519PrivateKey constructs a private key from its 32-byte seed. The
// seed slice is consumed and wiped.
func NewEd25519PrivateKey(seed []byte) (*Ed25519PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: Ed25519 seed size %d, want %d",
			ErrInvalidKeyType, len(seed), ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pubBytes := priv.Public().(ed25519.PublicKey)
	pub, err := NewEd25519PublicKey(pubBytes)
	memguard.WipeBytes(priv)
	if err != nil {
		return nil, err
	}

	buf := memguard.NewBufferFromBytes(seed)
	buf.Freeze()
	return &Ed25519PrivateKey{seed: buf, pub: pub}, nil
}

// GenerateEd25519Key creates a new random Ed25519 private key.
func GenerateEd25519Key() (*Ed25519PrivateKey, error) {
	seed, err := randBytes(ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	return NewEd25519PrivateKey(seed)
}

func (k *Ed25519PrivateKey) Type() Type   { return TypeEd25519Priv }
func (k *Ed25519PrivateKey) Hash() []byte { return k.pub.hash }

// PublicKey returns the derived public counterpart.
func (k *Ed25519PrivateKey) PublicKey() *Ed25519PublicKey { return k.pub }

// Seed returns a copy of the raw seed for key-set serialization by the
// loading collaborator.
func (k *Ed25519PrivateKey) Seed() ([]byte, error) {
	if !k.seed.IsAlive() {
		return nil, fmt.Errorf("%w: Ed25519 private key", ErrKeyDisposed)
	}
	out := make([]byte, k.seed.Size())
	copy(out, k.seed.Bytes())
	return out, nil
}

// Close wipes the seed.
func (k *Ed25519PrivateKey) Close() error {
	k.seed.Destroy()
	return nil
}

// NewSignStream returns a stream producing a 64-byte Ed25519 signature.
func (k *Ed25519PrivateKey) NewSignStream() (SignStream, error) {
	if !k.seed.IsAlive() {
		return nil, fmt.Errorf("%w: Ed25519 private key", ErrKeyDisposed)
	}
	seed := k.seed
	return &bufferSignStream{
		sign: func(message []byte) ([]byte, error) {
			if !seed.IsAlive() {
				return nil, fmt.Errorf("%w: Ed25519 private key", ErrKeyDisposed)
			}
			priv := ed25519.NewKeyFromSeed(seed.Bytes())
			sig := ed25519.Sign(priv, message)
			memguard.WipeBytes(priv)
			return sig, nil
		},
	}, nil
}

// NewVerifyStream verifies with the embedded public key.
func (k *Ed25519PrivateKey) NewVerifyStream() (VerifyStream, error) {
	if !k.seed.IsAlive() {
		return nil, fmt.Errorf("%w: Ed25519 private key", ErrKeyDisposed)
	}
	return k.pub.NewVerifyStream()
}
