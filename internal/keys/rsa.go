package keys

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"fmt"
	"io"
	"math/big"

	"github.com/40a/keyczar-go/internal/wire"
)

// Padding selects the byte-structuring scheme wrapping the raw RSA
// primitive for encryption.
type Padding string

const (
	PaddingOAEP Padding = "OAEP"
	PaddingPKCS Padding = "PKCS"
)

// ResolvePadding maps a persisted padding tag to a Padding. An empty tag
// defaults to OAEP. Resolution happens once at key construction and the
// result holds for the key's lifetime.
func ResolvePadding(tag string) (Padding, error) {
	switch tag {
	case "", "OAEP":
		return PaddingOAEP, nil
	case "PKCS":
		return PaddingPKCS, nil
	default:
		return "", fmt.Errorf("%w: unrecognized padding tag %q", ErrInvalidKeyType, tag)
	}
}

const (
	rsaMinLoadBits     = 1024
	rsaMinGenerateBits = 2048
	rsaMaxBits         = 4096
)

// RSAPublicKey verifies PKCS#1 v1.5 SHA-1 signatures and encrypts single
// blocks under the key's resolved padding.
//
// The identity hash is computed over the leading-zero-stripped modulus and
// exponent magnitudes: length-prefixed for OAEP keys, unprefixed for PKCS
// keys. The unprefixed form is part of the PKCS key contract and keeps
// identity hashes interoperable with reference implementations.
type RSAPublicKey struct {
	key      rsa.PublicKey
	padding  Padding
	hash     []byte
	disposed bool
}

// NewRSAPublicKey constructs a public key from raw big-endian modulus and
// exponent magnitudes and a persisted padding tag.
func NewRSAPublicKey(modulus, exponent []byte, paddingTag string) (*RSAPublicKey, error) {
	padding, err := ResolvePadding(paddingTag)
	if err != nil {
		return nil, err
	}
	if len(modulus) == 0 || len(exponent) == 0 {
		return nil, fmt.Errorf("%w: RSA key missing modulus or exponent", ErrInvalidKeyType)
	}

	n := new(big.Int).SetBytes(modulus)
	e := new(big.Int).SetBytes(exponent)
	if bits := n.BitLen(); bits < rsaMinLoadBits || bits > rsaMaxBits {
		return nil, fmt.Errorf("%w: RSA modulus of %d bits outside [%d, %d]",
			ErrInvalidKeyType, bits, rsaMinLoadBits, rsaMaxBits)
	}
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, fmt.Errorf("%w: RSA public exponent out of range", ErrInvalidKeyType)
	}

	modMag := wire.StripLeadingZeros(modulus)
	expMag := wire.StripLeadingZeros(exponent)
	var hash []byte
	if padding == PaddingPKCS {
		hash = wire.KeyHash(wire.KeyHashLen, modMag, expMag)
	} else {
		hash = wire.KeyHashPrefixed(wire.KeyHashLen, modMag, expMag)
	}

	return &RSAPublicKey{
		key:     rsa.PublicKey{N: n, E: int(e.Int64())},
		padding: padding,
		hash:    hash,
	}, nil
}

func (k *RSAPublicKey) Type() Type       { return TypeRSAPub }
func (k *RSAPublicKey) Hash() []byte     { return k.hash }
func (k *RSAPublicKey) Padding() Padding { return k.padding }

// Modulus returns the big-endian modulus magnitude.
func (k *RSAPublicKey) Modulus() []byte { return k.key.N.Bytes() }

// Exponent returns the big-endian public exponent magnitude.
func (k *RSAPublicKey) Exponent() []byte { return big.NewInt(int64(k.key.E)).Bytes() }

// Close poisons the key. Public parameters are not secret, so nothing is
// scrubbed.
func (k *RSAPublicKey) Close() error {
	k.disposed = true
	return nil
}

// NewVerifyStream returns a stream checking a PKCS#1 v1.5 SHA-1 signature.
func (k *RSAPublicKey) NewVerifyStream() (VerifyStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA public key", ErrKeyDisposed)
	}
	pub := k.key
	return &digestVerifyStream{
		h: sha1.New(),
		verify: func(digest, sig []byte) (bool, error) {
			return rsa.VerifyPKCS1v15(&pub, crypto.SHA1, digest, sig) == nil, nil
		},
	}, nil
}

// Encrypt encrypts a single block under the key's resolved padding. The
// header carries the key binding, so it is not folded into the ciphertext.
func (k *RSAPublicKey) Encrypt(_, plaintext []byte) ([]byte, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA public key", ErrKeyDisposed)
	}
	switch k.padding {
	case PaddingPKCS:
		return rsa.EncryptPKCS1v15(randSource(), &k.key, plaintext)
	default:
		return rsa.EncryptOAEP(sha1.New(), randSource(), &k.key, plaintext, nil)
	}
}

// NewEncryptWriter buffers the plaintext and emits the single RSA block on
// Close. RSA has no streaming mode; the stage exists so asymmetric and
// symmetric keys compose through the same pipeline.
func (k *RSAPublicKey) NewEncryptWriter(sink io.Writer, header []byte) (io.WriteCloser, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA public key", ErrKeyDisposed)
	}
	return &bufferedEncryptWriter{
		sink:   sink,
		header: header,
		enc:    k.Encrypt,
	}, nil
}

// RSAPrivateKey signs with PKCS#1 v1.5 SHA-1 and decrypts under the key's
// resolved padding. It derives and embeds its public counterpart.
type RSAPrivateKey struct {
	key      *rsa.PrivateKey
	pub      *RSAPublicKey
	disposed bool
}

// RSAPrivateParams are the raw big-endian parameter magnitudes of a loaded
// RSA private key.
type RSAPrivateParams struct {
	Modulus         []byte
	PublicExponent  []byte
	PrivateExponent []byte
	PrimeP          []byte
	PrimeQ          []byte
	PaddingTag      string
}

// NewRSAPrivateKey constructs a private key from raw parameters, validating
// the parameter set.
func NewRSAPrivateKey(params RSAPrivateParams) (*RSAPrivateKey, error) {
	pub, err := NewRSAPublicKey(params.Modulus, params.PublicExponent, params.PaddingTag)
	if err != nil {
		return nil, err
	}
	if len(params.PrivateExponent) == 0 || len(params.PrimeP) == 0 || len(params.PrimeQ) == 0 {
		return nil, fmt.Errorf("%w: RSA private key missing parameters", ErrInvalidKeyType)
	}

	key := &rsa.PrivateKey{
		PublicKey: pub.key,
		D:         new(big.Int).SetBytes(params.PrivateExponent),
		Primes: []*big.Int{
			new(big.Int).SetBytes(params.PrimeP),
			new(big.Int).SetBytes(params.PrimeQ),
		},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: inconsistent RSA parameters: %v", ErrInvalidKeyType, err)
	}
	key.Precompute()

	return &RSAPrivateKey{key: key, pub: pub}, nil
}

// GenerateRSAKey creates a new RSA private key of the given bit size with
// the default (OAEP) padding.
func GenerateRSAKey(bits int) (*RSAPrivateKey, error) {
	if bits < rsaMinGenerateBits || bits > rsaMaxBits {
		return nil, fmt.Errorf("%w: RSA key size %d bits outside [%d, %d]",
			ErrInvalidKeyType, bits, rsaMinGenerateBits, rsaMaxBits)
	}
	key, err := rsa.GenerateKey(randSource(), bits)
	if err != nil {
		return nil, fmt.Errorf("keys: generating RSA key: %w", err)
	}
	pub, err := NewRSAPublicKey(key.N.Bytes(), big.NewInt(int64(key.E)).Bytes(), "")
	if err != nil {
		return nil, err
	}
	return &RSAPrivateKey{key: key, pub: pub}, nil
}

func (k *RSAPrivateKey) Type() Type   { return TypeRSAPriv }
func (k *RSAPrivateKey) Hash() []byte { return k.pub.hash }

// PublicKey returns the derived public counterpart. It shares the private
// key's identity hash.
func (k *RSAPrivateKey) PublicKey() *RSAPublicKey { return k.pub }

// Params returns the raw private parameter magnitudes for key-set
// serialization by the loading collaborator.
func (k *RSAPrivateKey) Params() (RSAPrivateParams, error) {
	if k.disposed {
		return RSAPrivateParams{}, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	tag := ""
	if k.pub.padding == PaddingPKCS {
		tag = string(PaddingPKCS)
	}
	return RSAPrivateParams{
		Modulus:         k.key.N.Bytes(),
		PublicExponent:  big.NewInt(int64(k.key.E)).Bytes(),
		PrivateExponent: k.key.D.Bytes(),
		PrimeP:          k.key.Primes[0].Bytes(),
		PrimeQ:          k.key.Primes[1].Bytes(),
		PaddingTag:      tag,
	}, nil
}

// Close scrubs the private parameters best-effort (math/big offers no
// guaranteed wipe) and poisons the key. The public half stays usable
// through PublicKey until closed itself.
func (k *RSAPrivateKey) Close() error {
	k.disposed = true
	zeroBigInt(k.key.D)
	for _, p := range k.key.Primes {
		zeroBigInt(p)
	}
	zeroBigInt(k.key.Precomputed.Dp)
	zeroBigInt(k.key.Precomputed.Dq)
	zeroBigInt(k.key.Precomputed.Qinv)
	return nil
}

// NewSignStream returns a stream producing a PKCS#1 v1.5 SHA-1 signature.
// The private parameters are bound into the closure at construction; no
// cipher state is cached on the key across calls.
func (k *RSAPrivateKey) NewSignStream() (SignStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	key := k.key
	return &digestSignStream{
		h: sha1.New(),
		sign: func(digest []byte) ([]byte, error) {
			return rsa.SignPKCS1v15(randSource(), key, crypto.SHA1, digest)
		},
	}, nil
}

// NewVerifyStream verifies with the embedded public key.
func (k *RSAPrivateKey) NewVerifyStream() (VerifyStream, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	return k.pub.NewVerifyStream()
}

// Encrypt encrypts with the embedded public key.
func (k *RSAPrivateKey) Encrypt(header, plaintext []byte) ([]byte, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	return k.pub.Encrypt(header, plaintext)
}

// NewEncryptWriter encrypts with the embedded public key.
func (k *RSAPrivateKey) NewEncryptWriter(sink io.Writer, header []byte) (io.WriteCloser, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	return k.pub.NewEncryptWriter(sink, header)
}

// Decrypt decrypts a single RSA block under the key's resolved padding.
// Padding failures are reported as corrupt data, with no detail that could
// feed a padding oracle.
func (k *RSAPrivateKey) Decrypt(_, payload []byte) ([]byte, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty RSA payload", wire.ErrCorrupt)
	}

	var (
		plaintext []byte
		err       error
	)
	switch k.pub.padding {
	case PaddingPKCS:
		plaintext, err = rsa.DecryptPKCS1v15(nil, k.key, payload)
	default:
		plaintext, err = rsa.DecryptOAEP(sha1.New(), nil, k.key, payload, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: RSA decryption failed", wire.ErrCorrupt)
	}
	return plaintext, nil
}

// NewDecryptReader buffers the single RSA block from src and decrypts on
// first read.
func (k *RSAPrivateKey) NewDecryptReader(src io.Reader, header []byte) (io.ReadCloser, error) {
	if k.disposed {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeyDisposed)
	}
	payload, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: reading RSA payload: %v", wire.ErrCorrupt, err)
	}
	plaintext, err := k.Decrypt(header, payload)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

// bufferedEncryptWriter adapts single-block primitives to the streaming
// pipeline: it accumulates plaintext and writes the block on Close.
type bufferedEncryptWriter struct {
	sink   io.Writer
	header []byte
	enc    func(header, plaintext []byte) ([]byte, error)
	buf    []byte
	closed bool
}

func (w *bufferedEncryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("keys: write to closed encrypt stream")
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *bufferedEncryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	block, err := w.enc(w.header, w.buf)
	if err != nil {
		return err
	}
	_, err = w.sink.Write(block)
	return err
}

func zeroBigInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
