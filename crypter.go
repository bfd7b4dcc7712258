package keyczar

import (
	"fmt"
	"io"

	"github.com/40a/keyczar-go/internal/keys"
	"github.com/40a/keyczar-go/internal/wire"
)

// Encrypter produces self-describing ciphertexts with a key set's primary
// version.
type Encrypter struct {
	ks  *KeySet
	cfg config
}

// NewEncrypter wraps a key set for encryption. The set's purpose must
// allow it.
func NewEncrypter(ks *KeySet, opts ...Option) (*Encrypter, error) {
	if !ks.purpose.canEncrypt() {
		return nil, fmt.Errorf("%w: purpose %q cannot encrypt", ErrUnsupportedOperation, ks.purpose)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Encrypter{ks: ks, cfg: cfg}, nil
}

// Encrypt encrypts plaintext with the primary version and returns the
// header-prefixed ciphertext.
func (e *Encrypter) Encrypt(plaintext []byte) ([]byte, error) {
	key, version, err := e.primaryEncrypter()
	if err != nil {
		return nil, err
	}
	header := wire.WriteHeader(version.KeyHash())
	body, err := key.Encrypt(header, plaintext)
	if err != nil {
		return nil, err
	}

	e.cfg.logger.Debug().
		Str("op", "encrypt").
		Str("keyset", e.ks.name).
		Int("version", version.Number).
		Msg("encrypted payload")
	return append(header, body...), nil
}

// EncryptWriter returns a WriteCloser that encrypts everything written to
// it into sink. The header is emitted immediately; Close flushes the final
// block and trailer. Symmetric sets stream block by block, asymmetric sets
// buffer and emit a single block on Close.
func (e *Encrypter) EncryptWriter(sink io.Writer) (io.WriteCloser, error) {
	key, version, err := e.primaryEncrypter()
	if err != nil {
		return nil, err
	}
	header := wire.WriteHeader(version.KeyHash())
	if _, err := sink.Write(header); err != nil {
		return nil, err
	}
	return key.NewEncryptWriter(sink, header)
}

func (e *Encrypter) primaryEncrypter() (keys.Encrypter, *KeyVersion, error) {
	if err := e.ks.checkAlive(); err != nil {
		return nil, nil, err
	}
	primary, ok := e.ks.Primary()
	if !ok {
		return nil, nil, fmt.Errorf("%w: key set %q has no primary version", ErrKeyNotFound, e.ks.name)
	}
	key, ok := primary.key.(keys.Encrypter)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s keys cannot encrypt", ErrUnsupportedOperation, primary.key.Type())
	}
	return key, primary, nil
}

// Crypter decrypts self-describing ciphertexts against a key set, and can
// encrypt like an Encrypter. Decryption accepts Primary and Active
// versions, plus Inactive ones unless disabled with
// WithInactiveDecryption(false).
type Crypter struct {
	Encrypter
}

// NewCrypter wraps a key set for decryption and encryption. The set's
// purpose must allow decryption.
func NewCrypter(ks *KeySet, opts ...Option) (*Crypter, error) {
	if !ks.purpose.canDecrypt() {
		return nil, fmt.Errorf("%w: purpose %q cannot decrypt", ErrUnsupportedOperation, ks.purpose)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Crypter{Encrypter{ks: ks, cfg: cfg}}, nil
}

// Decrypt authenticates and decrypts a header-prefixed ciphertext.
func (c *Crypter) Decrypt(data []byte) ([]byte, error) {
	if err := c.ks.checkAlive(); err != nil {
		return nil, err
	}
	keyHash, body, err := wire.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	candidates, err := c.decryptCandidates(keyHash)
	if err != nil {
		return nil, err
	}

	header := data[:wire.HeaderLen]
	var lastErr error
	for _, kv := range candidates {
		key, ok := kv.key.(keys.Decrypter)
		if !ok {
			return nil, fmt.Errorf("%w: %s keys cannot decrypt", ErrUnsupportedOperation, kv.key.Type())
		}
		plain, err := key.Decrypt(header, body)
		if err != nil {
			lastErr = err
			continue
		}
		c.cfg.logger.Debug().
			Str("op", "decrypt").
			Str("keyset", c.ks.name).
			Int("version", kv.Number).
			Msg("decrypted payload")
		return plain, nil
	}
	return nil, lastErr
}

// DecryptReader returns a Reader that decrypts the header-prefixed stream
// src. The header is consumed up front to resolve the key; plaintext then
// surfaces incrementally, and with authenticated symmetric sets the
// integrity verdict only arrives with the final Read. Callers that cannot
// tolerate releasing unverified plaintext must buffer until EOF.
//
// If several versions share the identity hash, only the first eligible one
// is tried.
func (c *Crypter) DecryptReader(src io.Reader) (io.ReadCloser, error) {
	if err := c.ks.checkAlive(); err != nil {
		return nil, err
	}
	header, err := wire.ReadHeader(src)
	if err != nil {
		return nil, err
	}
	if header[0] != wire.FormatVersion {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrBadVersion, header[0], wire.FormatVersion)
	}
	candidates, err := c.decryptCandidates(header[1:])
	if err != nil {
		return nil, err
	}
	key, ok := candidates[0].key.(keys.Decrypter)
	if !ok {
		return nil, fmt.Errorf("%w: %s keys cannot decrypt", ErrUnsupportedOperation, candidates[0].key.Type())
	}
	return key.NewDecryptReader(src, header)
}

func (c *Crypter) decryptCandidates(keyHash []byte) ([]*KeyVersion, error) {
	allowed := func(s KeyStatus) bool {
		if s == StatusInactive {
			return c.cfg.decryptInactive
		}
		return true
	}
	candidates := c.ks.versionsForHash(keyHash, allowed)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no key with hash %x", ErrKeyNotFound, keyHash)
	}
	return candidates, nil
}
