package keys

import "hash"

// digestSignStream feeds written bytes into a running digest and binds the
// signature primitive at finalize. The primitive closure captures the key's
// numeric parameters at construction time; nothing is cached across calls.
type digestSignStream struct {
	h    hash.Hash
	sign func(digest []byte) ([]byte, error)
}

func (s *digestSignStream) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

func (s *digestSignStream) Sign() ([]byte, error) {
	return s.sign(s.h.Sum(nil))
}

// digestVerifyStream recomputes the digest and compares a supplied
// signature at finalize.
type digestVerifyStream struct {
	h      hash.Hash
	verify func(digest, sig []byte) (bool, error)
}

func (s *digestVerifyStream) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

func (s *digestVerifyStream) Verify(sig []byte) (bool, error) {
	return s.verify(s.h.Sum(nil), sig)
}

// bufferSignStream accumulates the whole message for primitives that sign
// the message directly rather than a digest (Ed25519).
type bufferSignStream struct {
	buf  []byte
	sign func(message []byte) ([]byte, error)
}

func (s *bufferSignStream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *bufferSignStream) Sign() ([]byte, error) {
	return s.sign(s.buf)
}

type bufferVerifyStream struct {
	buf    []byte
	verify func(message, sig []byte) (bool, error)
}

func (s *bufferVerifyStream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *bufferVerifyStream) Verify(sig []byte) (bool, error) {
	return s.verify(s.buf, sig)
}
