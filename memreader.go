package keyczar

import (
	"encoding/json"
	"fmt"

	"github.com/40a/keyczar-go/internal/keys"
)

// MemoryReader is a Reader backed by in-memory documents. It doubles as
// the mutable side of the toolkit: new versions can be generated into it
// and statuses rotated, then the result loaded with ReadKeySet. Not safe
// for concurrent use.
type MemoryReader struct {
	meta keySetMeta
	docs map[int][]byte
}

// NewMemoryReader creates an empty in-memory key set with the given name,
// purpose and key type.
func NewMemoryReader(name string, purpose Purpose, keyType KeyType) (*MemoryReader, error) {
	if !validPurpose(purpose) {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidKeyType, purpose)
	}
	if !validKeyType(keyType) {
		return nil, fmt.Errorf("%w: unknown key type %q", ErrInvalidKeyType, keyType)
	}
	return &MemoryReader{
		meta: keySetMeta{Name: name, Purpose: purpose, Type: keyType},
		docs: make(map[int][]byte),
	}, nil
}

// Metadata returns the key-set metadata document.
func (r *MemoryReader) Metadata() ([]byte, error) {
	return json.Marshal(r.meta)
}

// Key returns the key document for the given version number.
func (r *MemoryReader) Key(version int) ([]byte, error) {
	doc, ok := r.docs[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", ErrKeyNotFound, version)
	}
	return doc, nil
}

// AddNewKey generates fresh key material of the set's type and appends it
// as a new version with the given status, returning the version number.
// Adding a Primary version demotes the existing Primary to Active.
func (r *MemoryReader) AddNewKey(status KeyStatus) (int, error) {
	key, err := generateKey(r.meta.Type)
	if err != nil {
		return 0, err
	}
	defer key.Close()

	doc, err := marshalKey(key)
	if err != nil {
		return 0, err
	}
	return r.addVersion(status, doc)
}

// AddKeyJSON appends an existing key document as a new version with the
// given status. The document is validated against the set's type.
func (r *MemoryReader) AddKeyJSON(status KeyStatus, doc []byte) (int, error) {
	key, err := parseKey(r.meta.Type, doc)
	if err != nil {
		return 0, err
	}
	key.Close()

	copied := make([]byte, len(doc))
	copy(copied, doc)
	return r.addVersion(status, copied)
}

func (r *MemoryReader) addVersion(status KeyStatus, doc []byte) (int, error) {
	if !validStatus(status) {
		return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidKeyType, status)
	}
	if status == StatusPrimary {
		r.demotePrimary()
	}

	number := 1
	for _, v := range r.meta.Versions {
		if v.VersionNumber >= number {
			number = v.VersionNumber + 1
		}
	}
	r.meta.Versions = append(r.meta.Versions, keyVersionMeta{
		VersionNumber: number,
		Status:        status,
		Exportable:    false,
	})
	r.docs[number] = doc
	return number, nil
}

// SetStatus changes the status of an existing version. Promoting a version
// to Primary demotes the current Primary to Active.
func (r *MemoryReader) SetStatus(version int, status KeyStatus) error {
	if !validStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidKeyType, status)
	}
	idx := -1
	for i, v := range r.meta.Versions {
		if v.VersionNumber == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: version %d", ErrKeyNotFound, version)
	}
	if status == StatusPrimary && r.meta.Versions[idx].Status != StatusPrimary {
		r.demotePrimary()
	}
	r.meta.Versions[idx].Status = status
	return nil
}

// SetExportable marks a version as exportable in the metadata.
func (r *MemoryReader) SetExportable(version int, exportable bool) error {
	for i, v := range r.meta.Versions {
		if v.VersionNumber == version {
			r.meta.Versions[i].Exportable = exportable
			return nil
		}
	}
	return fmt.Errorf("%w: version %d", ErrKeyNotFound, version)
}

func (r *MemoryReader) demotePrimary() {
	for i, v := range r.meta.Versions {
		if v.Status == StatusPrimary {
			r.meta.Versions[i].Status = StatusActive
		}
	}
}

// Public derives the public-half key set from an asymmetric private set:
// RSA_PRIV becomes RSA_PUB, DSA_PRIV becomes DSA_PUB, ED25519_PRIV becomes
// ED25519_PUB. Purpose narrows accordingly (SIGN_AND_VERIFY to VERIFY,
// DECRYPT_AND_ENCRYPT to ENCRYPT). Symmetric sets have no public half.
func (r *MemoryReader) Public() (*MemoryReader, error) {
	var pubType KeyType
	switch r.meta.Type {
	case RSAPriv:
		pubType = RSAPub
	case DSAPriv:
		pubType = DSAPub
	case Ed25519Priv:
		pubType = Ed25519Pub
	default:
		return nil, fmt.Errorf("%w: key type %q has no public half", ErrUnsupportedOperation, r.meta.Type)
	}

	pubPurpose := r.meta.Purpose
	switch r.meta.Purpose {
	case PurposeSignAndVerify:
		pubPurpose = PurposeVerify
	case PurposeDecryptAndEncrypt:
		pubPurpose = PurposeEncrypt
	}

	out := &MemoryReader{
		meta: keySetMeta{Name: r.meta.Name, Purpose: pubPurpose, Type: pubType},
		docs: make(map[int][]byte, len(r.docs)),
	}
	for _, vm := range r.meta.Versions {
		key, err := parseKey(r.meta.Type, r.docs[vm.VersionNumber])
		if err != nil {
			return nil, err
		}
		doc, err := marshalKey(publicHalf(key))
		key.Close()
		if err != nil {
			return nil, err
		}
		out.meta.Versions = append(out.meta.Versions, vm)
		out.docs[vm.VersionNumber] = doc
	}
	return out, nil
}

func publicHalf(key keys.Key) keys.Key {
	switch k := key.(type) {
	case *keys.RSAPrivateKey:
		return k.PublicKey()
	case *keys.DSAPrivateKey:
		return k.PublicKey()
	case *keys.Ed25519PrivateKey:
		return k.PublicKey()
	}
	return key
}

// generateKey produces fresh material for one version. Public key types
// cannot be generated directly; derive them with Public.
func generateKey(kt KeyType) (keys.Key, error) {
	switch kt {
	case HMACSHA1:
		return keys.GenerateHMACKey()
	case AES:
		return keys.GenerateAESKey(256)
	case RSAPriv:
		return keys.GenerateRSAKey(2048)
	case DSAPriv:
		return keys.GenerateDSAKey(1024)
	case Ed25519Priv:
		return keys.GenerateEd25519Key()
	case RSAPub, DSAPub, Ed25519Pub:
		return nil, fmt.Errorf("%w: cannot generate material for public key type %q", ErrUnsupportedOperation, kt)
	default:
		return nil, fmt.Errorf("%w: unknown key type %q", ErrInvalidKeyType, kt)
	}
}
