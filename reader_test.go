package keyczar

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReader_MetadataShape(t *testing.T) {
	mem := newRotatedHMACReader(t)
	doc, err := mem.Metadata()
	require.NoError(t, err)

	var meta struct {
		Name     string `json:"name"`
		Purpose  string `json:"purpose"`
		Type     string `json:"type"`
		Versions []struct {
			VersionNumber int    `json:"versionNumber"`
			Status        string `json:"status"`
			Exportable    bool   `json:"exportable"`
		} `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(doc, &meta))
	assert.Equal(t, "rotated", meta.Name)
	assert.Equal(t, "SIGN_AND_VERIFY", meta.Purpose)
	assert.Equal(t, "HMAC_SHA1", meta.Type)
	require.Len(t, meta.Versions, 2)
	assert.Equal(t, "ACTIVE", meta.Versions[0].Status)
	assert.Equal(t, "PRIMARY", meta.Versions[1].Status)
}

func TestMemoryReader_KeyDocuments_RoundTrip(t *testing.T) {
	types := []struct {
		kt      KeyType
		purpose Purpose
	}{
		{HMACSHA1, PurposeSignAndVerify},
		{AES, PurposeDecryptAndEncrypt},
		{RSAPriv, PurposeDecryptAndEncrypt},
		{DSAPriv, PurposeSignAndVerify},
		{Ed25519Priv, PurposeSignAndVerify},
	}
	for _, tt := range types {
		t.Run(string(tt.kt), func(t *testing.T) {
			doc := keyDocFor(t, tt.kt, tt.purpose)

			// A document written by one reader loads in another.
			mem, err := NewMemoryReader("reload", tt.purpose, tt.kt)
			require.NoError(t, err)
			v, err := mem.AddKeyJSON(StatusPrimary, doc)
			require.NoError(t, err)

			ks := readSet(t, mem)
			require.Len(t, ks.Versions(), 1)
			assert.Equal(t, v, ks.Versions()[0].Number)
			assert.Len(t, ks.Versions()[0].KeyHash(), 4)
		})
	}
}

func TestParseKey_BadDocuments(t *testing.T) {
	tests := []struct {
		name string
		kt   KeyType
		doc  string
	}{
		{"not json", HMACSHA1, `{{`},
		{"missing material", HMACSHA1, `{"size":256}`},
		{"bad base64", HMACSHA1, `{"hmacKeyString":"!!!","size":256}`},
		{"unsupported aes mode", AES, `{"aesKeyString":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","size":256,"mode":"GCM","hmacKey":{"hmacKeyString":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","size":256}}`},
		{"rsa missing primes", RSAPriv, `{"publicKey":{"modulus":"AQAB","publicExponent":"AQAB","size":2048},"privateExponent":"AQAB","size":2048}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, err := NewMemoryReader("bad", PurposeSignAndVerify, tt.kt)
			require.NoError(t, err)
			_, err = mem.AddKeyJSON(StatusPrimary, []byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidKeyType)
		})
	}
}

func TestMemoryReader_SetStatusAndExportable(t *testing.T) {
	mem := newRotatedHMACReader(t)

	require.NoError(t, mem.SetStatus(1, StatusInactive))
	require.NoError(t, mem.SetExportable(1, true))
	assert.ErrorIs(t, mem.SetStatus(99, StatusActive), ErrKeyNotFound)
	assert.ErrorIs(t, mem.SetExportable(99, true), ErrKeyNotFound)
	assert.ErrorIs(t, mem.SetStatus(1, KeyStatus("RETIRED")), ErrInvalidKeyType)

	ks := readSet(t, mem)
	versions := ks.Versions()
	assert.Equal(t, StatusInactive, versions[0].Status)
	assert.True(t, versions[0].Exportable)
}

func TestMemoryReader_PromotionDemotesPrimary(t *testing.T) {
	mem := newRotatedHMACReader(t)

	// Promote version 1 back; version 2 must drop to active.
	require.NoError(t, mem.SetStatus(1, StatusPrimary))
	ks := readSet(t, mem)
	versions := ks.Versions()
	assert.Equal(t, StatusPrimary, versions[0].Status)
	assert.Equal(t, StatusActive, versions[1].Status)
}

func TestMemoryReader_PublicHalf_SymmetricRejected(t *testing.T) {
	mem, err := NewMemoryReader("sym", PurposeSignAndVerify, HMACSHA1)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)

	_, err = mem.Public()
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestGenerate_PublicKeyTypeRejected(t *testing.T) {
	mem, err := NewMemoryReader("pub", PurposeVerify, Ed25519Pub)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestNewMemoryReader_InvalidEnums(t *testing.T) {
	_, err := NewMemoryReader("x", Purpose("SHRED"), HMACSHA1)
	assert.ErrorIs(t, err, ErrInvalidKeyType)
	_, err = NewMemoryReader("x", PurposeSignAndVerify, KeyType("ROT13"))
	assert.ErrorIs(t, err, ErrInvalidKeyType)
}

func TestRSAPublicHalf_EncryptsForPrivateSet(t *testing.T) {
	mem, err := NewMemoryReader("rsa", PurposeDecryptAndEncrypt, RSAPriv)
	require.NoError(t, err)
	_, err = mem.AddKeyJSON(StatusPrimary, keyDocFor(t, RSAPriv, PurposeDecryptAndEncrypt))
	require.NoError(t, err)

	pubMem, err := mem.Public()
	require.NoError(t, err)
	assert.Equal(t, RSAPub, pubMem.meta.Type)
	assert.Equal(t, PurposeEncrypt, pubMem.meta.Purpose)

	public := readSet(t, pubMem)
	enc, err := NewEncrypter(public)
	require.NoError(t, err)
	ct, err := enc.Encrypt([]byte("for the private holder"))
	require.NoError(t, err)

	private := readSet(t, mem)
	crypter, err := NewCrypter(private)
	require.NoError(t, err)
	got, err := crypter.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("for the private holder"), got)

	// Encrypt-only sets cannot decrypt.
	_, err = NewCrypter(public)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}
