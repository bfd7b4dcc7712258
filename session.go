package keyczar

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionMaterialLen = 32
	sessionInfo        = "keyczar-session-v1"
)

// SessionEncrypter implements hybrid encryption: a fresh symmetric session
// is wrapped once with an asymmetric key set, then bulk payloads are
// encrypted under the session with AES-256-GCM. The wrapped session
// material travels with the ciphertexts; only holders of the private set
// can unwrap it.
type SessionEncrypter struct {
	session *sessionCipher
	wrapped []byte
}

// NewSessionEncrypter generates fresh session material and wraps it with
// the given encrypter.
func NewSessionEncrypter(encrypter *Encrypter) (*SessionEncrypter, error) {
	material := make([]byte, sessionMaterialLen)
	if _, err := rand.Read(material); err != nil {
		return nil, err
	}
	wrapped, err := encrypter.Encrypt(material)
	if err != nil {
		memguard.WipeBytes(material)
		return nil, err
	}
	session, err := newSessionCipher(material)
	if err != nil {
		return nil, err
	}
	return &SessionEncrypter{session: session, wrapped: wrapped}, nil
}

// SessionMaterial returns the wrapped session material. Transmit it
// alongside the session ciphertexts.
func (s *SessionEncrypter) SessionMaterial() []byte {
	out := make([]byte, len(s.wrapped))
	copy(out, s.wrapped)
	return out
}

// Encrypt encrypts plaintext under the session. The output is
// nonce || ciphertext with the GCM tag appended by the mode.
func (s *SessionEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	return s.session.seal(plaintext)
}

// Close scrubs the session material. The encrypter is unusable afterwards.
func (s *SessionEncrypter) Close() error {
	return s.session.close()
}

// SessionDecrypter is the receiving side of a hybrid session: it unwraps
// the session material with a Crypter and decrypts the session
// ciphertexts.
type SessionDecrypter struct {
	session *sessionCipher
}

// NewSessionDecrypter unwraps session material produced by a
// SessionEncrypter.
func NewSessionDecrypter(crypter *Crypter, sessionMaterial []byte) (*SessionDecrypter, error) {
	material, err := crypter.Decrypt(sessionMaterial)
	if err != nil {
		return nil, err
	}
	if len(material) != sessionMaterialLen {
		memguard.WipeBytes(material)
		return nil, fmt.Errorf("%w: session material of %d bytes", ErrInvalidData, len(material))
	}
	session, err := newSessionCipher(material)
	if err != nil {
		return nil, err
	}
	return &SessionDecrypter{session: session}, nil
}

// Decrypt authenticates and decrypts a session ciphertext.
func (s *SessionDecrypter) Decrypt(data []byte) ([]byte, error) {
	return s.session.open(data)
}

// Close scrubs the session material.
func (s *SessionDecrypter) Close() error {
	return s.session.close()
}

// sessionCipher derives an AES-256-GCM key from raw session material with
// HKDF-SHA256 and holds it in locked memory. The construction takes
// ownership of material and wipes it.
type sessionCipher struct {
	key  *memguard.LockedBuffer
	aead cipher.AEAD
}

func newSessionCipher(material []byte) (*sessionCipher, error) {
	derived := make([]byte, sessionMaterialLen)
	kdf := hkdf.New(sha256.New, material, nil, []byte(sessionInfo))
	_, err := io.ReadFull(kdf, derived)
	memguard.WipeBytes(material)
	if err != nil {
		memguard.WipeBytes(derived)
		return nil, err
	}

	key := memguard.NewBufferFromBytes(derived)
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		key.Destroy()
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	key.Freeze()
	return &sessionCipher{key: key, aead: aead}, nil
}

func (c *sessionCipher) seal(plaintext []byte) ([]byte, error) {
	if !c.key.IsAlive() {
		return nil, fmt.Errorf("%w: session", ErrKeyDisposed)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *sessionCipher) open(data []byte) ([]byte, error) {
	if !c.key.IsAlive() {
		return nil, fmt.Errorf("%w: session", ErrKeyDisposed)
	}
	if len(data) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: session payload of %d bytes is too short", ErrInvalidData, len(data))
	}
	nonce, ct := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: session authentication failed", ErrInvalidData)
	}
	return plain, nil
}

func (c *sessionCipher) close() error {
	if c.key.IsAlive() {
		c.key.Destroy()
	}
	return nil
}
