package keyczar

import (
	"fmt"
	"sort"

	"github.com/40a/keyczar-go/internal/keys"
	"github.com/40a/keyczar-go/internal/wire"
)

// KeyStatus is the lifecycle state of a key version within a set.
type KeyStatus string

const (
	// StatusPrimary marks the single version used for new sign/encrypt
	// operations.
	StatusPrimary KeyStatus = "PRIMARY"
	// StatusActive marks a version valid for verify/decrypt but not for
	// new operations.
	StatusActive KeyStatus = "ACTIVE"
	// StatusInactive marks a retired version; acceptance for decryption
	// is policy (see WithInactiveDecryption).
	StatusInactive KeyStatus = "INACTIVE"
)

func validStatus(s KeyStatus) bool {
	return s == StatusPrimary || s == StatusActive || s == StatusInactive
}

// Purpose declares what operations a key set supports.
type Purpose string

const (
	PurposeSignAndVerify     Purpose = "SIGN_AND_VERIFY"
	PurposeVerify            Purpose = "VERIFY"
	PurposeEncrypt           Purpose = "ENCRYPT"
	PurposeDecryptAndEncrypt Purpose = "DECRYPT_AND_ENCRYPT"
)

func (p Purpose) canSign() bool    { return p == PurposeSignAndVerify }
func (p Purpose) canVerify() bool  { return p == PurposeSignAndVerify || p == PurposeVerify }
func (p Purpose) canEncrypt() bool { return p == PurposeEncrypt || p == PurposeDecryptAndEncrypt }
func (p Purpose) canDecrypt() bool { return p == PurposeDecryptAndEncrypt }

func validPurpose(p Purpose) bool {
	return p.canVerify() || p.canEncrypt()
}

// KeyType identifies the algorithm family of the keys in a set.
type KeyType string

const (
	HMACSHA1    KeyType = "HMAC_SHA1"
	AES         KeyType = "AES"
	RSAPriv     KeyType = "RSA_PRIV"
	RSAPub      KeyType = "RSA_PUB"
	DSAPriv     KeyType = "DSA_PRIV"
	DSAPub      KeyType = "DSA_PUB"
	Ed25519Priv KeyType = "ED25519_PRIV"
	Ed25519Pub  KeyType = "ED25519_PUB"
)

func validKeyType(kt KeyType) bool {
	switch kt {
	case HMACSHA1, AES, RSAPriv, RSAPub, DSAPriv, DSAPub, Ed25519Priv, Ed25519Pub:
		return true
	}
	return false
}

// KeyVersion pairs a version number and status with one key.
type KeyVersion struct {
	Number     int
	Status     KeyStatus
	Exportable bool

	key keys.Key
}

// KeyHash returns the identity hash of the version's key.
func (v *KeyVersion) KeyHash() []byte {
	return v.key.Hash()
}

// KeySet is an ordered, read-only collection of key versions sharing a
// purpose and algorithm family. Lookup by identity hash and stream
// construction never mutate the set, so concurrent read-only use is safe
// as long as no goroutine disposes it. Callers must not Close a set while
// operations on it are in flight.
type KeySet struct {
	name     string
	purpose  Purpose
	keyType  KeyType
	versions []*KeyVersion
	primary  *KeyVersion
	byHash   map[[wire.KeyHashLen]byte][]*KeyVersion
	disposed bool
}

// newKeySet assembles and indexes a set from loaded versions, enforcing
// the at-most-one-primary invariant.
func newKeySet(name string, purpose Purpose, keyType KeyType, versions []*KeyVersion) (*KeySet, error) {
	if !validPurpose(purpose) {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidKeyType, purpose)
	}
	if !validKeyType(keyType) {
		return nil, fmt.Errorf("%w: unknown key type %q", ErrInvalidKeyType, keyType)
	}

	ks := &KeySet{
		name:    name,
		purpose: purpose,
		keyType: keyType,
		byHash:  make(map[[wire.KeyHashLen]byte][]*KeyVersion),
	}
	for _, v := range versions {
		if !validStatus(v.Status) {
			return nil, fmt.Errorf("%w: unknown status %q on version %d", ErrInvalidKeyType, v.Status, v.Number)
		}
		if v.Status == StatusPrimary {
			if ks.primary != nil {
				return nil, fmt.Errorf("%w: versions %d and %d both primary",
					ErrInvalidKeyType, ks.primary.Number, v.Number)
			}
			ks.primary = v
		}
		var hash [wire.KeyHashLen]byte
		copy(hash[:], v.key.Hash())
		ks.byHash[hash] = append(ks.byHash[hash], v)
		ks.versions = append(ks.versions, v)
	}
	sort.Slice(ks.versions, func(i, j int) bool { return ks.versions[i].Number < ks.versions[j].Number })

	return ks, nil
}

// Name returns the key set's name.
func (ks *KeySet) Name() string { return ks.name }

// Purpose returns the operations the set supports.
func (ks *KeySet) Purpose() Purpose { return ks.purpose }

// Type returns the algorithm family of the set's keys.
func (ks *KeySet) Type() KeyType { return ks.keyType }

// Versions returns the key versions in version-number order.
func (ks *KeySet) Versions() []*KeyVersion {
	out := make([]*KeyVersion, len(ks.versions))
	copy(out, ks.versions)
	return out
}

// Primary returns the primary version, or false if the set has none
// (legitimate for verify-only sets).
func (ks *KeySet) Primary() (*KeyVersion, bool) {
	if ks.primary == nil {
		return nil, false
	}
	return ks.primary, true
}

// versionsForHash returns the versions whose key matches the identity
// hash, filtered by the allowed statuses. Pure lookup: no shared state is
// touched.
func (ks *KeySet) versionsForHash(hash []byte, allowed func(KeyStatus) bool) []*KeyVersion {
	var key [wire.KeyHashLen]byte
	copy(key[:], hash)
	var out []*KeyVersion
	for _, v := range ks.byHash[key] {
		if allowed(v.Status) {
			out = append(out, v)
		}
	}
	return out
}

func (ks *KeySet) checkAlive() error {
	if ks.disposed {
		return fmt.Errorf("%w: key set %q", ErrKeyDisposed, ks.name)
	}
	return nil
}

// Close scrubs the secret material of every contained key and poisons the
// set. It is idempotent; constructing streams from a closed set fails with
// ErrKeyDisposed.
func (ks *KeySet) Close() error {
	if ks.disposed {
		return nil
	}
	ks.disposed = true
	var firstErr error
	for _, v := range ks.versions {
		if err := v.key.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
