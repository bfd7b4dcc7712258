package keys

import (
	"bytes"
	"errors"
	"testing"

	"github.com/40a/keyczar-go/internal/wire"
)

func signWith(t *testing.T, k Signer, msg []byte) []byte {
	t.Helper()
	stream, err := k.NewSignStream()
	if err != nil {
		t.Fatalf("NewSignStream() error = %v", err)
	}
	if _, err := stream.Write(msg); err != nil {
		t.Fatal(err)
	}
	sig, err := stream.Sign()
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return sig
}

func verifyWith(t *testing.T, k Verifier, msg, sig []byte) bool {
	t.Helper()
	stream, err := k.NewVerifyStream()
	if err != nil {
		t.Fatalf("NewVerifyStream() error = %v", err)
	}
	if _, err := stream.Write(msg); err != nil {
		t.Fatal(err)
	}
	ok, err := stream.Verify(sig)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	return ok
}

func TestHMACKey_SignVerify_RoundTrip(t *testing.T) {
	key, err := GenerateHMACKey()
	if err != nil {
		t.Fatalf("GenerateHMACKey() error = %v", err)
	}
	defer key.Close()

	msg := []byte("This is some test data")
	sig := signWith(t, key, msg)

	if len(sig) != HMACSigSize {
		t.Errorf("signature length = %d, want %d", len(sig), HMACSigSize)
	}
	if !verifyWith(t, key, msg, sig) {
		t.Error("signature did not verify")
	}
	if verifyWith(t, key, []byte("Wrong string"), sig) {
		t.Error("signature verified against the wrong message")
	}
}

func TestHMACKey_TamperedSignature(t *testing.T) {
	key, err := GenerateHMACKey()
	if err != nil {
		t.Fatal(err)
	}
	defer key.Close()

	msg := []byte("tamper target")
	sig := signWith(t, key, msg)

	for i := range sig {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), sig...)
			flipped[i] ^= 1 << bit
			if verifyWith(t, key, msg, flipped) {
				t.Fatalf("flipping bit %d of byte %d still verified", bit, i)
			}
		}
	}
}

func TestHMACKey_IdentityHash(t *testing.T) {
	material := bytes.Repeat([]byte{0x42}, HMACKeySize)

	a, err := NewHMACKey(append([]byte(nil), material...))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewHMACKey(append([]byte(nil), material...))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if !bytes.Equal(a.Hash(), b.Hash()) {
		t.Error("same secret produced different identity hashes")
	}
	if len(a.Hash()) != wire.KeyHashLen {
		t.Errorf("hash length = %d, want %d", len(a.Hash()), wire.KeyHashLen)
	}

	changed := append([]byte(nil), material...)
	changed[0] ^= 1
	c, err := NewHMACKey(changed)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if bytes.Equal(a.Hash(), c.Hash()) {
		t.Error("different secrets produced the same identity hash")
	}
}

func TestNewHMACKey_SizeBounds(t *testing.T) {
	tests := []struct {
		name string
		size int
		ok   bool
	}{
		{"too short", 8, false},
		{"minimum", hmacKeyMinSize, true},
		{"default", HMACKeySize, true},
		{"maximum", hmacKeyMaxSize, true},
		{"too long", 128, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewHMACKey(make([]byte, tt.size))
			if tt.ok {
				if err != nil {
					t.Fatalf("NewHMACKey() error = %v", err)
				}
				key.Close()
				return
			}
			if !errors.Is(err, ErrInvalidKeyType) {
				t.Errorf("NewHMACKey() error = %v, want ErrInvalidKeyType", err)
			}
		})
	}
}

func TestHMACKey_DisposedKeyRejectsStreams(t *testing.T) {
	key, err := GenerateHMACKey()
	if err != nil {
		t.Fatal(err)
	}
	if err := key.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := key.NewSignStream(); !errors.Is(err, ErrKeyDisposed) {
		t.Errorf("NewSignStream() on disposed key error = %v, want ErrKeyDisposed", err)
	}
	if _, err := key.NewVerifyStream(); !errors.Is(err, ErrKeyDisposed) {
		t.Errorf("NewVerifyStream() on disposed key error = %v, want ErrKeyDisposed", err)
	}
	if _, err := key.Material(); !errors.Is(err, ErrKeyDisposed) {
		t.Errorf("Material() on disposed key error = %v, want ErrKeyDisposed", err)
	}
}
