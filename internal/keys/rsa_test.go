package keys

import (
	"bytes"
	"errors"
	"testing"
)

// Generating RSA keys is slow; share one across the package's RSA tests.
var testRSAKey *RSAPrivateKey

func getTestRSAKey(t *testing.T) *RSAPrivateKey {
	t.Helper()
	if testRSAKey == nil {
		key, err := GenerateRSAKey(2048)
		if err != nil {
			t.Fatalf("GenerateRSAKey() error = %v", err)
		}
		testRSAKey = key
	}
	return testRSAKey
}

func TestResolvePadding(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want Padding
		ok   bool
	}{
		{"unspecified defaults to OAEP", "", PaddingOAEP, true},
		{"explicit OAEP", "OAEP", PaddingOAEP, true},
		{"PKCS", "PKCS", PaddingPKCS, true},
		{"bogus", "BOGUS", "", false},
		{"lowercase is not recognized", "oaep", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePadding(tt.tag)
			if !tt.ok {
				if !errors.Is(err, ErrInvalidKeyType) {
					t.Errorf("ResolvePadding(%q) error = %v, want ErrInvalidKeyType", tt.tag, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePadding(%q) error = %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("ResolvePadding(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestRSAKey_SignVerify_RoundTrip(t *testing.T) {
	key := getTestRSAKey(t)

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

	sig[10] ^= 1
	if verifyWith(t, key, msg, sig) {
		t.Error("tampered signature verified")
	}
}

func TestRSAKey_EncryptDecrypt_BothPaddings(t *testing.T) {
	key := getTestRSAKey(t)
	params, err := key.Params()
	if err != nil {
		t.Fatal(err)
	}

	for _, tag := range []string{"", "PKCS"} {
		t.Run("padding "+tag, func(t *testing.T) {
			params.PaddingTag = tag
			k, err := NewRSAPrivateKey(params)
			if err != nil {
				t.Fatalf("NewRSAPrivateKey() error = %v", err)
			}

			plaintext := []byte("single RSA block")
			header := testHeader(k)
			payload, err := k.Encrypt(header, plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			got, err := k.Decrypt(header, payload)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("decrypted = %q, want %q", got, plaintext)
			}
		})
	}
}

func TestRSAKey_IdentityHash_PaddingModes(t *testing.T) {
	key := getTestRSAKey(t)
	params, err := key.Params()
	if err != nil {
		t.Fatal(err)
	}

	oaep, err := NewRSAPublicKey(params.Modulus, params.PublicExponent, "")
	if err != nil {
		t.Fatal(err)
	}
	again, err := NewRSAPublicKey(params.Modulus, params.PublicExponent, "OAEP")
	if err != nil {
		t.Fatal(err)
	}
	pkcs, err := NewRSAPublicKey(params.Modulus, params.PublicExponent, "PKCS")
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(oaep.Hash(), again.Hash()) {
		t.Error("same key and padding produced different identity hashes")
	}
	// PKCS keys hash unprefixed magnitudes; the two modes must not collide.
	if bytes.Equal(oaep.Hash(), pkcs.Hash()) {
		t.Error("OAEP and PKCS identity hashes collided")
	}
}

func TestNewRSAPrivateKey_Invalid(t *testing.T) {
	key := getTestRSAKey(t)
	valid, err := key.Params()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*RSAPrivateParams)
	}{
		{"missing modulus", func(p *RSAPrivateParams) { p.Modulus = nil }},
		{"missing private exponent", func(p *RSAPrivateParams) { p.PrivateExponent = nil }},
		{"missing prime", func(p *RSAPrivateParams) { p.PrimeP = nil }},
		{"bogus padding", func(p *RSAPrivateParams) { p.PaddingTag = "BOGUS" }},
		{"inconsistent primes", func(p *RSAPrivateParams) { p.PrimeP, p.PrimeQ = p.PrimeQ, append([]byte{1}, p.PrimeP...) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			tt.mutate(&params)
			if _, err := NewRSAPrivateKey(params); !errors.Is(err, ErrInvalidKeyType) {
				t.Errorf("NewRSAPrivateKey() error = %v, want ErrInvalidKeyType", err)
			}
		})
	}
}

func TestGenerateRSAKey_SizeBounds(t *testing.T) {
	for _, bits := range []int{512, 1024, 8192} {
		if _, err := GenerateRSAKey(bits); !errors.Is(err, ErrInvalidKeyType) {
			t.Errorf("GenerateRSAKey(%d) error = %v, want ErrInvalidKeyType", bits, err)
		}
	}
}

func TestRSAKey_DisposedKeyRejectsStreams(t *testing.T) {
	// A private copy, since disposal poisons the key.
	shared := getTestRSAKey(t)
	params, err := shared.Params()
	if err != nil {
		t.Fatal(err)
	}
	key, err := NewRSAPrivateKey(params)
	if err != nil {
		t.Fatal(err)
	}
	if err := key.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := key.NewSignStream(); !errors.Is(err, ErrKeyDisposed) {
		t.Errorf("NewSignStream() on disposed key error = %v, want ErrKeyDisposed", err)
	}
	if _, err := key.Decrypt(nil, []byte{1}); !errors.Is(err, ErrKeyDisposed) {
		t.Errorf("Decrypt() on disposed key error = %v, want ErrKeyDisposed", err)
	}
}
