package keys

import (
	"bytes"
	"errors"
	"testing"
)

// DSA parameter generation is very slow; share one key across the tests.
var testDSAKey *DSAPrivateKey

func getTestDSAKey(t *testing.T) *DSAPrivateKey {
	t.Helper()
	if testDSAKey == nil {
		key, err := GenerateDSAKey(1024)
		if err != nil {
			t.Fatalf("GenerateDSAKey() error = %v", err)
		}
		testDSAKey = key
	}
	return testDSAKey
}

func TestDSAKey_SignVerify_RoundTrip(t *testing.T) {
	key := getTestDSAKey(t)

	msg := []byte("This is some test data")
	sig := signWith(t, key, msg)

	if !verifyWith(t, key, msg, sig) {
		t.Error("signature did not verify")
	}
	if !verifyWith(t, key.PublicKey(), msg, sig) {
		t.Error("signature did not verify with the public half")
	}
	if verifyWith(t, key, []byte("Wrong string"), sig) {
		t.Error("signature verified against the wrong message")
	}
}

func TestDSAKey_TamperedSignature_IsFalseNotError(t *testing.T) {
	key := getTestDSAKey(t)

	msg := []byte("tamper target")
	sig := signWith(t, key, msg)

	// Bit flips routinely break the DER structure; that must read as a
	// mismatch, never as an error.
	for _, i := range []int{0, 1, len(sig) / 2, len(sig) - 1} {
		flipped := append([]byte(nil), sig...)
		flipped[i] ^= 0x40
		stream, err := key.NewVerifyStream()
		if err != nil {
			t.Fatal(err)
		}
		stream.Write(msg)
		ok, err := stream.Verify(flipped)
		if err != nil {
			t.Fatalf("Verify(flipped byte %d) error = %v, want false", i, err)
		}
		if ok {
			t.Errorf("tampered signature (byte %d) verified", i)
		}
	}
}

func TestDSAKey_IdentityHash_Deterministic(t *testing.T) {
	key := getTestDSAKey(t)
	params := key.PublicKey().Params()

	a, err := NewDSAPublicKey(params)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Hash(), key.Hash()) {
		t.Error("reloaded public key has a different identity hash")
	}

	params.Y = append([]byte{1}, params.Y...)
	b, err := NewDSAPublicKey(params)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.Hash(), b.Hash()) {
		t.Error("different public parameters produced the same identity hash")
	}
}

func TestNewDSAPublicKey_MissingParams(t *testing.T) {
	key := getTestDSAKey(t)
	params := key.PublicKey().Params()
	params.Q = nil
	if _, err := NewDSAPublicKey(params); !errors.Is(err, ErrInvalidKeyType) {
		t.Errorf("NewDSAPublicKey() error = %v, want ErrInvalidKeyType", err)
	}
}

func TestGenerateDSAKey_SizeBounds(t *testing.T) {
	if _, err := GenerateDSAKey(512); !errors.Is(err, ErrInvalidKeyType) {
		t.Errorf("GenerateDSAKey(512) error = %v, want ErrInvalidKeyType", err)
	}
}
