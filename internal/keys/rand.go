package keys

import (
	"crypto/rand"
	"fmt"
	"io"
)

// randReader is the random source used for key and IV generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func randSource() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randSource(), b); err != nil {
		return nil, fmt.Errorf("keys: reading random bytes: %w", err)
	}
	return b, nil
}

// SetRandReaderForTesting sets the random reader used by key generation.
// This is intended for testing only. Returns a function to restore the
// original reader.
func SetRandReaderForTesting(r io.Reader) func() {
	original := randReader
	randReader = r
	return func() { randReader = original }
}
