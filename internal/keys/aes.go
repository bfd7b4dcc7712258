package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"github.com/awnumar/memguard"

	"github.com/40a/keyczar-go/internal/wire"
)

const (
	aesBlockSize = aes.BlockSize
	aesIVSize    = aes.BlockSize
)

func validAESKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// AESKey is a symmetric encryption key: AES-CBC with PKCS#7 padding and an
// attached HMAC-SHA1 key providing the integrity tag. The tag covers the
// message header and IV as well as the ciphertext, so a payload cannot be
// replayed under a different key version.
//
// Payload layout (after the header): IV || ciphertext || 20-byte tag.
type AESKey struct {
	material *memguard.LockedBuffer
	hmacKey  *HMACKey
	hash     []byte
}

// NewAESKey constructs an AES key from raw secret bytes and its attached
// HMAC key. The material slice is consumed and wiped.
func NewAESKey(material []byte, hmacKey *HMACKey) (*AESKey, error) {
	if !validAESKeySize(len(material)) {
		return nil, fmt.Errorf("%w: AES key size %d, want 16, 24 or 32", ErrInvalidKeyType, len(material))
	}
	if hmacKey == nil {
		return nil, fmt.Errorf("%w: AES key requires an attached HMAC key", ErrInvalidKeyType)
	}

	hmacMaterial, err := hmacKey.Material()
	if err != nil {
		return nil, err
	}
	hash := wire.KeyHashPrefixed(wire.KeyHashLen, material, hmacMaterial)
	memguard.WipeBytes(hmacMaterial)

	buf := memguard.NewBufferFromBytes(material)
	buf.Freeze()

	return &AESKey{material: buf, hmacKey: hmacKey, hash: hash}, nil
}

// GenerateAESKey creates a new random AES key of the given bit size
// (128, 192 or 256) with a fresh attached HMAC key.
func GenerateAESKey(bits int) (*AESKey, error) {
	if !validAESKeySize(bits / 8) {
		return nil, fmt.Errorf("%w: AES key size %d bits", ErrInvalidKeyType, bits)
	}
	material, err := randBytes(bits / 8)
	if err != nil {
		return nil, err
	}
	hmacKey, err := GenerateHMACKey()
	if err != nil {
		return nil, err
	}
	return NewAESKey(material, hmacKey)
}

func (k *AESKey) Type() Type   { return TypeAES }
func (k *AESKey) Hash() []byte { return k.hash }

// HMACKey returns the attached integrity key.
func (k *AESKey) HMACKey() *HMACKey { return k.hmacKey }

// Close wipes the AES secret and the attached HMAC secret.
func (k *AESKey) Close() error {
	k.material.Destroy()
	return k.hmacKey.Close()
}

// Material exposes the raw secret for key-set serialization by the loading
// collaborator. The returned slice is a copy.
func (k *AESKey) Material() ([]byte, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: AES key", ErrKeyDisposed)
	}
	out := make([]byte, k.material.Size())
	copy(out, k.material.Bytes())
	return out, nil
}

func (k *AESKey) newCipher() (cipher.Block, error) {
	if !k.material.IsAlive() {
		return nil, fmt.Errorf("%w: AES key", ErrKeyDisposed)
	}
	return aes.NewCipher(k.material.Bytes())
}

// Encrypt encrypts plaintext under a fresh IV. The header is bound into the
// integrity tag but not included in the returned payload.
func (k *AESKey) Encrypt(header, plaintext []byte) ([]byte, error) {
	block, err := k.newCipher()
	if err != nil {
		return nil, err
	}

	iv, err := randBytes(aesIVSize)
	if err != nil {
		return nil, err
	}

	padded := padPKCS7(plaintext, aesBlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	memguard.WipeBytes(padded)

	tag, err := k.hmacKey.signRaw(header, iv, ciphertext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, aesIVSize+len(ciphertext)+len(tag))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// Decrypt checks the integrity tag, then decrypts and unpads. Any tag or
// padding failure is reported as corrupt data.
func (k *AESKey) Decrypt(header, payload []byte) ([]byte, error) {
	block, err := k.newCipher()
	if err != nil {
		return nil, err
	}

	if len(payload) < aesIVSize+aesBlockSize+HMACSigSize {
		return nil, fmt.Errorf("%w: AES payload of %d bytes", wire.ErrCorrupt, len(payload))
	}

	iv := payload[:aesIVSize]
	ciphertext := payload[aesIVSize : len(payload)-HMACSigSize]
	tag := payload[len(payload)-HMACSigSize:]

	if len(ciphertext)%aesBlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", wire.ErrCorrupt)
	}

	want, err := k.hmacKey.signRaw(header, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(tag, want) {
		return nil, fmt.Errorf("%w: integrity tag mismatch", wire.ErrCorrupt)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext, aesBlockSize)
	if err != nil {
		memguard.WipeBytes(plaintext)
		return nil, err
	}
	return unpadded, nil
}

// NewEncryptWriter returns a single-pass encrypting stage writing to sink.
// The header must already have been written to sink by the caller; it is
// folded into the integrity tag here. Close flushes the final padded block
// and the tag.
func (k *AESKey) NewEncryptWriter(sink io.Writer, header []byte) (io.WriteCloser, error) {
	block, err := k.newCipher()
	if err != nil {
		return nil, err
	}
	if !k.hmacKey.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}

	iv, err := randBytes(aesIVSize)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha1.New, k.hmacKey.material.Bytes())
	mac.Write(header)
	mac.Write(iv)
	if _, err := sink.Write(iv); err != nil {
		return nil, err
	}

	return &aesEncryptWriter{
		sink: sink,
		enc:  cipher.NewCBCEncrypter(block, iv),
		mac:  mac,
	}, nil
}

type aesEncryptWriter struct {
	sink   io.Writer
	enc    cipher.BlockMode
	mac    hash.Hash
	buf    []byte // plaintext remainder, always < one block after Write
	closed bool
}

func (w *aesEncryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("keys: write to closed encrypt stream")
	}
	w.buf = append(w.buf, p...)

	n := len(w.buf) - len(w.buf)%aesBlockSize
	if n == 0 {
		return len(p), nil
	}

	out := make([]byte, n)
	w.enc.CryptBlocks(out, w.buf[:n])
	w.mac.Write(out)
	if _, err := w.sink.Write(out); err != nil {
		return 0, err
	}
	rest := append([]byte(nil), w.buf[n:]...)
	memguard.WipeBytes(w.buf)
	w.buf = rest
	return len(p), nil
}

func (w *aesEncryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	padded := padPKCS7(w.buf, aesBlockSize)
	memguard.WipeBytes(w.buf)
	w.buf = nil

	out := make([]byte, len(padded))
	w.enc.CryptBlocks(out, padded)
	memguard.WipeBytes(padded)
	w.mac.Write(out)
	if _, err := w.sink.Write(out); err != nil {
		return err
	}
	if _, err := w.sink.Write(w.mac.Sum(nil)); err != nil {
		return err
	}
	return nil
}

// NewDecryptReader returns a single-pass decrypting stage reading from src,
// positioned just past the header (which the caller already consumed and
// passes in for tag verification). The integrity tag trails the ciphertext,
// so plaintext is necessarily surfaced before the tag is checked: the final
// Read reports corrupt data if the tag does not match, and callers must
// discard everything on that error.
func (k *AESKey) NewDecryptReader(src io.Reader, header []byte) (io.ReadCloser, error) {
	block, err := k.newCipher()
	if err != nil {
		return nil, err
	}
	if !k.hmacKey.material.IsAlive() {
		return nil, fmt.Errorf("%w: HMAC key", ErrKeyDisposed)
	}

	iv := make([]byte, aesIVSize)
	if _, err := io.ReadFull(src, iv); err != nil {
		return nil, fmt.Errorf("%w: reading IV: %v", wire.ErrCorrupt, err)
	}

	mac := hmac.New(sha1.New, k.hmacKey.material.Bytes())
	mac.Write(header)
	mac.Write(iv)

	return &aesDecryptReader{
		src: src,
		dec: cipher.NewCBCDecrypter(block, iv),
		mac: mac,
	}, nil
}

type aesDecryptReader struct {
	src   io.Reader
	dec   cipher.BlockMode
	mac   hash.Hash
	carry []byte // undecided ciphertext; holds at least tag + final block
	out   []byte // decrypted bytes ready for the caller
	err   error
	done  bool
}

// holdback is how much ciphertext the reader keeps undecided: the trailing
// tag plus the final block, which needs its padding stripped before emit.
const aesHoldback = HMACSigSize + aesBlockSize

func (r *aesDecryptReader) fill() {
	chunk := make([]byte, 4096)
	n, err := r.src.Read(chunk)
	r.carry = append(r.carry, chunk[:n]...)

	if processable := len(r.carry) - aesHoldback; processable >= aesBlockSize {
		processable -= processable % aesBlockSize
		ct := r.carry[:processable]
		r.mac.Write(ct)
		plain := make([]byte, processable)
		r.dec.CryptBlocks(plain, ct)
		r.out = append(r.out, plain...)
		r.carry = append([]byte(nil), r.carry[processable:]...)
	}

	if err == io.EOF {
		r.finish()
		return
	}
	if err != nil {
		r.err = err
	}
}

func (r *aesDecryptReader) finish() {
	r.done = true

	if len(r.carry) < aesBlockSize+HMACSigSize {
		r.err = fmt.Errorf("%w: AES stream too short", wire.ErrCorrupt)
		return
	}
	ct := r.carry[:len(r.carry)-HMACSigSize]
	tag := r.carry[len(r.carry)-HMACSigSize:]
	if len(ct)%aesBlockSize != 0 {
		r.err = fmt.Errorf("%w: ciphertext not block aligned", wire.ErrCorrupt)
		return
	}

	r.mac.Write(ct)
	if !hmac.Equal(tag, r.mac.Sum(nil)) {
		r.err = fmt.Errorf("%w: integrity tag mismatch", wire.ErrCorrupt)
		return
	}

	plain := make([]byte, len(ct))
	r.dec.CryptBlocks(plain, ct)
	// Padding never spans blocks, so stripping the held-back tail is safe
	// even when earlier blocks were already emitted.
	unpadded, err := unpadPKCS7(plain, aesBlockSize)
	if err != nil {
		r.err = err
		return
	}
	r.out = append(r.out, unpadded...)
}

func (r *aesDecryptReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 && r.err == nil && !r.done {
		r.fill()
	}
	if len(r.out) > 0 {
		n := copy(p, r.out)
		r.out = r.out[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	return 0, io.EOF
}

func (r *aesDecryptReader) Close() error {
	memguard.WipeBytes(r.out)
	r.out = nil
	r.carry = nil
	return nil
}

// padPKCS7 appends 1..blockSize padding bytes, each holding the pad length.
func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpadPKCS7 validates and strips PKCS#7 padding.
func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", wire.ErrCorrupt, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", wire.ErrCorrupt)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", wire.ErrCorrupt)
		}
	}
	return data[:len(data)-n], nil
}
