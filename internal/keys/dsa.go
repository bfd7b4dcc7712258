package keys

import (
	"crypto/dsa"
	"crypto/sha1"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/40a/keyczar-go/internal/wire"
)

// dsaSignature is the DER encoding of a DSA signature: SEQUENCE { r, s }.
type dsaSignature struct {
	R, S *big.Int
}

// DSAPublicKey verifies DER-encoded DSA-SHA1 signatures.
type DSAPublicKey struct {
	key      dsa.PublicKey
	hash     []byte
	disposed bool
}

// DSAPublicParams are the raw big-endian parameter magnitudes of a DSA
// public key.
type DSAPublicParams struct {
	P, Q, G, Y []byte
}

// NewDSAPublicKey constructs a public key from raw parameters.
func NewDSAPublicKey(params DSAPublicParams) (*DSAPublicKey, error) {
	if len(params.P) == 0 || len(params.Q) == 0 || len(params.G) == 0 || len(params.Y) == 0 {
		return nil, fmt.Errorf("%w: DSA key missing parameters", ErrInvalidKeyType)
	}

	key := dsa.PublicKey{
		Parameters: dsa.Parameters{
			P: new(big.Int).SetBytes(params.P),
			Q: new(big.Int).SetBytes(params.Q),
			G: new(big.Int).SetBytes(params.G),
		},
		Y: new(big.Int).SetBytes(params.Y),
	}
	if bits := key.P.BitLen(); bits < 1024 || bits > 3072 {
		return nil, fmt.Errorf("%w: DSA prime of %d bits outside [1024, 3072]", ErrInvalidKeyType, bits)
	}

	hash := wire.KeyHashPrefixed(wire.KeyHashLen,
		wire.StripLeadingZeros(params.P),
		wire.StripLeadingZeros(params.Q),
		wire.StripLeadingZeros(params.G),
		wire.StripLeadingZeros(params.Y),
	)

	return &DSAPublicKey{key: key, hash: hash}, nil
}

func (k *DSAPublicKey) Type() Type   { return TypeDSAPub }
func (k *DSAPublicKey) Hash() []byte { return k.hash }

// Params returns the raw public parameter magnitudes.
func (k *DSAPublicKey) Params() DSAPublicParams {
	return DSAPublicParams{
		P: k.key.P.Bytes(),
		Q: k.key.Q.Bytes(),
		G: k.key.G.Bytes(),
		Y: k.key.Y.Bytes(),
	}
}

// Close poisons the key; public parameters are not secret.
func (k *DSAPublicKey) Close() error {
	k.disposed = true
	return nil
}

// NewVerifyStream returns a stream checking a DER-encoded DSA signature
// over the SHA-1 digest. A signature that does not parse as DER is a
// mismatch, not an error: single bit flips in a valid signature routinely
// break the DER structure and must still verify as false.
func (k *DSAPublicKey) NewVerifyStream() (VerifyStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: DSA public key", ErrKeyDisposed)
	}
	pub := k.key
	return &digestVerifyStream{
		h: sha1.New(),
		verify: func(digest, sig []byte) (bool, error) {
			var parsed dsaSignature
			if rest, err := asn1.Unmarshal(sig, &parsed); err != nil || len(rest) != 0 {
				return false, nil
			}
			return dsa.Verify(&pub, digest, parsed.R, parsed.S), nil
		},
	}, nil
}

// DSAPrivateKey produces DER-encoded DSA-SHA1 signatures and derives its
// public counterpart.
type DSAPrivateKey struct {
	key      dsa.PrivateKey
	pub      *DSAPublicKey
	disposed bool
}

// DSAPrivateParams are the raw big-endian parameter magnitudes of a loaded
// DSA private key.
type DSAPrivateParams struct {
	Public DSAPublicParams
	X      []byte
}

// NewDSAPrivateKey constructs a private key from raw parameters.
func NewDSAPrivateKey(params DSAPrivateParams) (*DSAPrivateKey, error) {
	pub, err := NewDSAPublicKey(params.Public)
	if err != nil {
		return nil, err
	}
	if len(params.X) == 0 {
		return nil, fmt.Errorf("%w: DSA private key missing secret exponent", ErrInvalidKeyType)
	}

	key := dsa.PrivateKey{
		PublicKey: pub.key,
		X:         new(big.Int).SetBytes(params.X),
	}
	return &DSAPrivateKey{key: key, pub: pub}, nil
}

// GenerateDSAKey creates a new DSA private key. Supported sizes are 1024,
// 2048 and 3072 bits.
func GenerateDSAKey(bits int) (*DSAPrivateKey, error) {
	var size dsa.ParameterSizes
	switch bits {
	case 1024:
		size = dsa.L1024N160
	case 2048:
		size = dsa.L2048N256
	case 3072:
		size = dsa.L3072N256
	default:
		return nil, fmt.Errorf("%w: DSA key size %d bits", ErrInvalidKeyType, bits)
	}

	var key dsa.PrivateKey
	if err := dsa.GenerateParameters(&key.Parameters, randSource(), size); err != nil {
		return nil, fmt.Errorf("keys: generating DSA parameters: %w", err)
	}
	if err := dsa.GenerateKey(&key, randSource()); err != nil {
		return nil, fmt.Errorf("keys: generating DSA key: %w", err)
	}

	pub, err := NewDSAPublicKey(DSAPublicParams{
		P: key.P.Bytes(), Q: key.Q.Bytes(), G: key.G.Bytes(), Y: key.Y.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return &DSAPrivateKey{key: key, pub: pub}, nil
}

func (k *DSAPrivateKey) Type() Type   { return TypeDSAPriv }
func (k *DSAPrivateKey) Hash() []byte { return k.pub.hash }

// PublicKey returns the derived public counterpart.
func (k *DSAPrivateKey) PublicKey() *DSAPublicKey { return k.pub }

// Params returns the raw parameter magnitudes for key-set serialization.
func (k *DSAPrivateKey) Params() (DSAPrivateParams, error) {
	if k.disposed {
		return DSAPrivateParams{}, fmt.Errorf("%w: DSA private key", ErrKeyDisposed)
	}
	return DSAPrivateParams{Public: k.pub.Params(), X: k.key.X.Bytes()}, nil
}

// Close scrubs the secret exponent best-effort and poisons the key.
func (k *DSAPrivateKey) Close() error {
	k.disposed = true
	zeroBigInt(k.key.X)
	return nil
}

// NewSignStream returns a stream producing a DER-encoded DSA signature
// over the SHA-1 digest.
func (k *DSAPrivateKey) NewSignStream() (SignStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: DSA private key", ErrKeyDisposed)
	}
	key := k.key
	return &digestSignStream{
		h: sha1.New(),
		sign: func(digest []byte) ([]byte, error) {
			r, s, err := dsa.Sign(randSource(), &key, digest)
			if err != nil {
				return nil, fmt.Errorf("keys: DSA sign: %w", err)
			}
			return asn1.Marshal(dsaSignature{R: r, S: s})
		},
	}, nil
}

// NewVerifyStream verifies with the embedded public key.
func (k *DSAPrivateKey) NewVerifyStream() (VerifyStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: DSA private key", ErrKeyDisposed)
	}
	return k.pub.NewVerifyStream()
}
