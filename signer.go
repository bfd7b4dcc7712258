package keyczar

import (
	"fmt"
	"io"

	"github.com/40a/keyczar-go/internal/keys"
	"github.com/40a/keyczar-go/internal/wire"
)

// Signer produces self-describing signatures with a key set's primary
// version, and verifies like a Verifier (a signing purpose always implies
// verification). Signatures bind the format version: the payload signed is
// the message followed by the format-version byte, so a token from a
// future format revision can never verify under this one.
type Signer struct {
	Verifier
}

// NewSigner wraps a key set for signing. The set's purpose must allow it.
func NewSigner(ks *KeySet, opts ...Option) (*Signer, error) {
	if !ks.purpose.canSign() {
		return nil, fmt.Errorf("%w: purpose %q cannot sign", ErrUnsupportedOperation, ks.purpose)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Signer{Verifier{ks: ks, cfg: cfg}}, nil
}

// Sign signs the message with the primary version and returns the
// signature prefixed with the wire header.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	stream, version, err := s.newSignStream()
	if err != nil {
		return nil, err
	}
	if _, err := stream.Write(message); err != nil {
		return nil, err
	}
	sig, err := finishSign(stream, version.KeyHash())
	if err != nil {
		return nil, err
	}

	s.cfg.logger.Debug().
		Str("op", "sign").
		Str("keyset", s.ks.name).
		Int("version", version.Number).
		Msg("signed message")
	return sig, nil
}

// StreamSign returns a SignStream fed incrementally with Write; Sign
// finalizes it and returns the header-prefixed signature. The stream is
// single-use.
func (s *Signer) StreamSign() (SignStream, error) {
	stream, version, err := s.newSignStream()
	if err != nil {
		return nil, err
	}
	return &signStream{inner: stream, keyHash: version.KeyHash()}, nil
}

func (s *Signer) newSignStream() (keys.SignStream, *KeyVersion, error) {
	if err := s.ks.checkAlive(); err != nil {
		return nil, nil, err
	}
	primary, ok := s.ks.Primary()
	if !ok {
		return nil, nil, fmt.Errorf("%w: key set %q has no primary version", ErrKeyNotFound, s.ks.name)
	}
	signer, ok := primary.key.(keys.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s keys cannot sign", ErrUnsupportedOperation, primary.key.Type())
	}
	stream, err := signer.NewSignStream()
	if err != nil {
		return nil, nil, err
	}
	return stream, primary, nil
}

// finishSign appends the format-version byte to the signed payload and
// assembles header || raw signature.
func finishSign(stream keys.SignStream, keyHash []byte) ([]byte, error) {
	if _, err := stream.Write([]byte{wire.FormatVersion}); err != nil {
		return nil, err
	}
	raw, err := stream.Sign()
	if err != nil {
		return nil, err
	}
	return append(wire.WriteHeader(keyHash), raw...), nil
}

// SignStream is an incremental signing operation.
type SignStream interface {
	io.Writer

	// Sign finalizes the stream and returns the header-prefixed signature.
	Sign() ([]byte, error)
}

type signStream struct {
	inner   keys.SignStream
	keyHash []byte
}

func (s *signStream) Write(p []byte) (int, error) { return s.inner.Write(p) }

func (s *signStream) Sign() ([]byte, error) {
	return finishSign(s.inner, s.keyHash)
}

// Verifier checks self-describing signatures against a key set. Every
// status is eligible for verification; retiring a version to Inactive
// never invalidates its old signatures.
type Verifier struct {
	ks  *KeySet
	cfg config
}

// NewVerifier wraps a key set for verification. The set's purpose must
// allow it.
func NewVerifier(ks *KeySet, opts ...Option) (*Verifier, error) {
	if !ks.purpose.canVerify() {
		return nil, fmt.Errorf("%w: purpose %q cannot verify", ErrUnsupportedOperation, ks.purpose)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Verifier{ks: ks, cfg: cfg}, nil
}

// Verify reports whether signature is a valid signature over message by
// some version of the set. A well-formed signature by a known key that
// simply does not match returns (false, nil); a structurally malformed
// input or an unknown key identity returns an error.
func (v *Verifier) Verify(message, signature []byte) (bool, error) {
	candidates, raw, err := v.candidates(signature)
	if err != nil {
		return false, err
	}
	for _, kv := range candidates {
		stream, err := v.newVerifyStream(kv)
		if err != nil {
			return false, err
		}
		if _, err := stream.Write(message); err != nil {
			return false, err
		}
		ok, err := finishVerify(stream, raw)
		if err != nil {
			return false, err
		}
		if ok {
			v.cfg.logger.Debug().
				Str("op", "verify").
				Str("keyset", v.ks.name).
				Int("version", kv.Number).
				Msg("verified signature")
			return true, nil
		}
	}
	return false, nil
}

// StreamVerify returns a VerifyStream for the given signature. The message
// is fed incrementally with Write; Verify finalizes the check. The stream
// is single-use.
//
// Streaming verification resolves the key identity up front from the
// signature header; if several versions share the identity hash, only the
// first match is tried.
func (v *Verifier) StreamVerify(signature []byte) (VerifyStream, error) {
	candidates, raw, err := v.candidates(signature)
	if err != nil {
		return nil, err
	}
	stream, err := v.newVerifyStream(candidates[0])
	if err != nil {
		return nil, err
	}
	return &verifyStream{inner: stream, raw: raw}, nil
}

// candidates validates the signature envelope and resolves the versions
// eligible to verify it.
func (v *Verifier) candidates(signature []byte) ([]*KeyVersion, []byte, error) {
	if err := v.ks.checkAlive(); err != nil {
		return nil, nil, err
	}
	if len(signature) < wire.HeaderLen+1 {
		return nil, nil, fmt.Errorf("%w: signature of %d bytes is too short", ErrInvalidData, len(signature))
	}
	keyHash, raw, err := wire.ParseHeader(signature)
	if err != nil {
		return nil, nil, err
	}
	candidates := v.ks.versionsForHash(keyHash, func(KeyStatus) bool { return true })
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("%w: no key with hash %x", ErrKeyNotFound, keyHash)
	}
	return candidates, raw, nil
}

func (v *Verifier) newVerifyStream(kv *KeyVersion) (keys.VerifyStream, error) {
	verifier, ok := kv.key.(keys.Verifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s keys cannot verify", ErrUnsupportedOperation, kv.key.Type())
	}
	return verifier.NewVerifyStream()
}

func finishVerify(stream keys.VerifyStream, raw []byte) (bool, error) {
	if _, err := stream.Write([]byte{wire.FormatVersion}); err != nil {
		return false, err
	}
	return stream.Verify(raw)
}

// VerifyStream is an incremental verification operation.
type VerifyStream interface {
	io.Writer

	// Verify finalizes the stream and reports whether the signature
	// supplied at construction matches the streamed message.
	Verify() (bool, error)
}

type verifyStream struct {
	inner keys.VerifyStream
	raw   []byte
}

func (s *verifyStream) Write(p []byte) (int, error) { return s.inner.Write(p) }

func (s *verifyStream) Verify() (bool, error) {
	return finishVerify(s.inner, s.raw)
}
