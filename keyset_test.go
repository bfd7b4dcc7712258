package keyczar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadKeySet_RotatedSet(t *testing.T) {
	mem := newRotatedHMACReader(t)
	ks := readSet(t, mem)

	versions := ks.Versions()
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Number)
	assert.Equal(t, StatusActive, versions[0].Status)
	assert.Equal(t, 2, versions[1].Number)
	assert.Equal(t, StatusPrimary, versions[1].Status)

	primary, ok := ks.Primary()
	require.True(t, ok)
	assert.Equal(t, 2, primary.Number)
}

func TestRotation_OldSignaturesStillVerify(t *testing.T) {
	mem, err := NewMemoryReader("rotate", PurposeSignAndVerify, HMACSHA1)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)

	msg := []byte("This is some test data")

	ks1 := readSet(t, mem)
	signer1, err := NewSigner(ks1)
	require.NoError(t, err)
	oldSig, err := signer1.Sign(msg)
	require.NoError(t, err)

	// Rotate: version 2 becomes primary, version 1 drops to active.
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)

	ks2 := readSet(t, mem)
	signer2, err := NewSigner(ks2)
	require.NoError(t, err)
	newSig, err := signer2.Sign(msg)
	require.NoError(t, err)

	verifier, err := NewVerifier(ks2)
	require.NoError(t, err)

	ok, err := verifier.Verify(msg, oldSig)
	require.NoError(t, err)
	assert.True(t, ok, "pre-rotation signature no longer verifies")

	ok, err = verifier.Verify(msg, newSig)
	require.NoError(t, err)
	assert.True(t, ok)

	// New signatures carry the new primary's identity hash.
	v2 := ks2.Versions()[1]
	assert.Equal(t, v2.KeyHash(), newSig[1:5])
	assert.NotEqual(t, oldSig[1:5], newSig[1:5])
}

func TestReadKeySet_TwoPrimaries(t *testing.T) {
	mem, err := NewMemoryReader("bad", PurposeSignAndVerify, HMACSHA1)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)
	v2, err := mem.AddNewKey(StatusActive)
	require.NoError(t, err)

	// Force the invalid state directly in the metadata.
	require.NoError(t, mem.SetStatus(v2, StatusPrimary))
	mem.meta.Versions[0].Status = StatusPrimary

	_, err = ReadKeySet(mem)
	require.ErrorIs(t, err, ErrInvalidKeyType)
}

func TestSign_NoPrimary(t *testing.T) {
	mem, err := NewMemoryReader("noprimary", PurposeSignAndVerify, HMACSHA1)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusActive)
	require.NoError(t, err)

	ks := readSet(t, mem)
	signer, err := NewSigner(ks)
	require.NoError(t, err)

	_, err = signer.Sign([]byte("msg"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeySet_Close(t *testing.T) {
	mem := newRotatedHMACReader(t)
	ks, err := ReadKeySet(mem)
	require.NoError(t, err)

	signer, err := NewSigner(ks)
	require.NoError(t, err)

	require.NoError(t, ks.Close())
	require.NoError(t, ks.Close(), "Close is idempotent")

	_, err = signer.Sign([]byte("msg"))
	assert.True(t, errors.Is(err, ErrKeyDisposed))
}

func TestNewFacades_PurposeGate(t *testing.T) {
	signSet := newTestSet(t, PurposeSignAndVerify, HMACSHA1)
	cryptSet := newTestSet(t, PurposeDecryptAndEncrypt, AES)

	_, err := NewSigner(cryptSet)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = NewVerifier(cryptSet)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = NewEncrypter(signSet)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = NewCrypter(signSet)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}
