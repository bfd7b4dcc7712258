package keyczar

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbeKDF        = "PBKDF2_HMAC_SHA256"
	pbeCipher     = "AES256_GCM"
	pbeSaltLen    = 16
	pbeIterations = 100_000
)

// pbeEnvelope wraps one key document under a password-derived key.
type pbeEnvelope struct {
	KDF            string `json:"kdf"`
	Cipher         string `json:"cipher"`
	IterationCount int    `json:"iterationCount"`
	Salt           string `json:"salt"`
	IV             string `json:"iv"`
	Key            string `json:"key"`
}

// PBEReader wraps a Reader whose key documents are password-protected
// envelopes, decrypting each document on access. Metadata passes through
// unencrypted.
type PBEReader struct {
	inner    Reader
	password []byte
}

// NewPBEReader wraps inner with the given password. The password is copied;
// the caller keeps ownership of its slice.
func NewPBEReader(inner Reader, password []byte) *PBEReader {
	copied := make([]byte, len(password))
	copy(copied, password)
	return &PBEReader{inner: inner, password: copied}
}

// Metadata returns the inner reader's metadata document.
func (r *PBEReader) Metadata() ([]byte, error) {
	return r.inner.Metadata()
}

// Key unwraps the envelope for the given version and returns the plain key
// document.
func (r *PBEReader) Key(version int) ([]byte, error) {
	doc, err := r.inner.Key(version)
	if err != nil {
		return nil, err
	}
	return OpenPBEKey(doc, r.password)
}

// SealPBEKey wraps a plain key document in a password-protected envelope.
func SealPBEKey(keyDoc, password []byte) ([]byte, error) {
	salt := make([]byte, pbeSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := pbeAEAD(password, salt, pbeIterations)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, iv, keyDoc, nil)

	return json.Marshal(pbeEnvelope{
		KDF:            pbeKDF,
		Cipher:         pbeCipher,
		IterationCount: pbeIterations,
		Salt:           encodeField(salt),
		IV:             encodeField(iv),
		Key:            encodeField(sealed),
	})
}

// OpenPBEKey unwraps a password-protected envelope. A malformed envelope
// or a wrong password fails with ErrInvalidData.
func OpenPBEKey(envelopeDoc, password []byte) ([]byte, error) {
	var env pbeEnvelope
	if err := json.Unmarshal(envelopeDoc, &env); err != nil {
		return nil, fmt.Errorf("%w: key envelope: %v", ErrInvalidData, err)
	}
	if env.KDF != pbeKDF {
		return nil, fmt.Errorf("%w: unsupported KDF %q", ErrInvalidData, env.KDF)
	}
	if env.Cipher != pbeCipher {
		return nil, fmt.Errorf("%w: unsupported cipher %q", ErrInvalidData, env.Cipher)
	}
	if env.IterationCount < 1 {
		return nil, fmt.Errorf("%w: iteration count %d", ErrInvalidData, env.IterationCount)
	}
	salt, err := decodePBEField("salt", env.Salt)
	if err != nil {
		return nil, err
	}
	iv, err := decodePBEField("iv", env.IV)
	if err != nil {
		return nil, err
	}
	sealed, err := decodePBEField("key", env.Key)
	if err != nil {
		return nil, err
	}

	aead, err := pbeAEAD(password, salt, env.IterationCount)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: IV of %d bytes", ErrInvalidData, len(iv))
	}
	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope authentication failed", ErrInvalidData)
	}
	return plain, nil
}

func decodePBEField(name, value string) ([]byte, error) {
	b, err := decodeField(name, value)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope field %q", ErrInvalidData, name)
	}
	return b, nil
}

func pbeAEAD(password, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key(password, salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
