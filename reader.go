package keyczar

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/40a/keyczar-go/internal/keys"
)

// Reader supplies the raw JSON documents of a persisted key set: one
// metadata document and one key document per version. Implementations are
// the loading collaborators of the format engine; where the documents live
// (memory, disk, a secret store) is their concern.
type Reader interface {
	// Metadata returns the key-set metadata document.
	Metadata() ([]byte, error)

	// Key returns the key document for the given version number.
	Key(version int) ([]byte, error)
}

// keySetMeta is the key-set metadata document.
type keySetMeta struct {
	Name     string           `json:"name"`
	Purpose  Purpose          `json:"purpose"`
	Type     KeyType          `json:"type"`
	Versions []keyVersionMeta `json:"versions"`
}

type keyVersionMeta struct {
	VersionNumber int       `json:"versionNumber"`
	Status        KeyStatus `json:"status"`
	Exportable    bool      `json:"exportable"`
}

// ReadKeySet loads and indexes a key set through a Reader. The returned
// set is read-only; dispose it with Close when done.
func ReadKeySet(r Reader) (*KeySet, error) {
	metaDoc, err := r.Metadata()
	if err != nil {
		return nil, fmt.Errorf("keyczar: reading metadata: %w", err)
	}
	var meta keySetMeta
	if err := json.Unmarshal(metaDoc, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata document: %v", ErrInvalidKeyType, err)
	}

	versions := make([]*KeyVersion, 0, len(meta.Versions))
	for _, vm := range meta.Versions {
		doc, err := r.Key(vm.VersionNumber)
		if err != nil {
			return nil, fmt.Errorf("keyczar: reading key version %d: %w", vm.VersionNumber, err)
		}
		key, err := parseKey(meta.Type, doc)
		if err != nil {
			return nil, fmt.Errorf("keyczar: key version %d: %w", vm.VersionNumber, err)
		}
		versions = append(versions, &KeyVersion{
			Number:     vm.VersionNumber,
			Status:     vm.Status,
			Exportable: vm.Exportable,
			key:        key,
		})
	}

	return newKeySet(meta.Name, meta.Purpose, meta.Type, versions)
}

// Key document shapes. All byte fields are URL-safe base64 without
// padding; big-integer fields are raw big-endian magnitudes.

type hmacKeyJSON struct {
	HMACKeyString string `json:"hmacKeyString"`
	Size          int    `json:"size"`
}

type aesKeyJSON struct {
	AESKeyString string      `json:"aesKeyString"`
	Size         int         `json:"size"`
	Mode         string      `json:"mode"`
	HMACKey      hmacKeyJSON `json:"hmacKey"`
}

type rsaPubJSON struct {
	Modulus        string `json:"modulus"`
	PublicExponent string `json:"publicExponent"`
	Size           int    `json:"size"`
	Padding        string `json:"padding,omitempty"`
}

type rsaPrivJSON struct {
	PublicKey       rsaPubJSON `json:"publicKey"`
	PrivateExponent string     `json:"privateExponent"`
	PrimeP          string     `json:"primeP"`
	PrimeQ          string     `json:"primeQ"`
	Size            int        `json:"size"`
}

type dsaPubJSON struct {
	P    string `json:"p"`
	Q    string `json:"q"`
	G    string `json:"g"`
	Y    string `json:"y"`
	Size int    `json:"size"`
}

type dsaPrivJSON struct {
	PublicKey dsaPubJSON `json:"publicKey"`
	X         string     `json:"x"`
	Size      int        `json:"size"`
}

type ed25519PubJSON struct {
	PublicBytes string `json:"publicBytes"`
}

type ed25519PrivJSON struct {
	PublicKey ed25519PubJSON `json:"publicKey"`
	Seed      string         `json:"seed"`
}

func decodeField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: missing field %q", ErrInvalidKeyType, name)
	}
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidKeyType, name, err)
	}
	return b, nil
}

func encodeField(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// parseKey constructs a key from its JSON document according to the set's
// declared type.
func parseKey(kt KeyType, doc []byte) (keys.Key, error) {
	switch kt {
	case HMACSHA1:
		var j hmacKeyJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: HMAC document: %v", ErrInvalidKeyType, err)
		}
		material, err := decodeField("hmacKeyString", j.HMACKeyString)
		if err != nil {
			return nil, err
		}
		return keys.NewHMACKey(material)

	case AES:
		var j aesKeyJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: AES document: %v", ErrInvalidKeyType, err)
		}
		if j.Mode != "CBC" {
			return nil, fmt.Errorf("%w: unsupported AES mode %q", ErrInvalidKeyType, j.Mode)
		}
		material, err := decodeField("aesKeyString", j.AESKeyString)
		if err != nil {
			return nil, err
		}
		hmacMaterial, err := decodeField("hmacKeyString", j.HMACKey.HMACKeyString)
		if err != nil {
			return nil, err
		}
		hmacKey, err := keys.NewHMACKey(hmacMaterial)
		if err != nil {
			return nil, err
		}
		return keys.NewAESKey(material, hmacKey)

	case RSAPub:
		var j rsaPubJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: RSA public document: %v", ErrInvalidKeyType, err)
		}
		return parseRSAPub(j)

	case RSAPriv:
		var j rsaPrivJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: RSA private document: %v", ErrInvalidKeyType, err)
		}
		modulus, err := decodeField("modulus", j.PublicKey.Modulus)
		if err != nil {
			return nil, err
		}
		exponent, err := decodeField("publicExponent", j.PublicKey.PublicExponent)
		if err != nil {
			return nil, err
		}
		d, err := decodeField("privateExponent", j.PrivateExponent)
		if err != nil {
			return nil, err
		}
		p, err := decodeField("primeP", j.PrimeP)
		if err != nil {
			return nil, err
		}
		q, err := decodeField("primeQ", j.PrimeQ)
		if err != nil {
			return nil, err
		}
		return keys.NewRSAPrivateKey(keys.RSAPrivateParams{
			Modulus:         modulus,
			PublicExponent:  exponent,
			PrivateExponent: d,
			PrimeP:          p,
			PrimeQ:          q,
			PaddingTag:      j.PublicKey.Padding,
		})

	case DSAPub:
		var j dsaPubJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: DSA public document: %v", ErrInvalidKeyType, err)
		}
		return parseDSAPub(j)

	case DSAPriv:
		var j dsaPrivJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: DSA private document: %v", ErrInvalidKeyType, err)
		}
		pub, err := dsaPubParams(j.PublicKey)
		if err != nil {
			return nil, err
		}
		x, err := decodeField("x", j.X)
		if err != nil {
			return nil, err
		}
		return keys.NewDSAPrivateKey(keys.DSAPrivateParams{Public: pub, X: x})

	case Ed25519Pub:
		var j ed25519PubJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: Ed25519 public document: %v", ErrInvalidKeyType, err)
		}
		material, err := decodeField("publicBytes", j.PublicBytes)
		if err != nil {
			return nil, err
		}
		return keys.NewEd25519PublicKey(material)

	case Ed25519Priv:
		var j ed25519PrivJSON
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, fmt.Errorf("%w: Ed25519 private document: %v", ErrInvalidKeyType, err)
		}
		seed, err := decodeField("seed", j.Seed)
		if err != nil {
			return nil, err
		}
		return keys.NewEd25519PrivateKey(seed)

	default:
		return nil, fmt.Errorf("%w: unknown key type %q", ErrInvalidKeyType, kt)
	}
}

func parseRSAPub(j rsaPubJSON) (*keys.RSAPublicKey, error) {
	modulus, err := decodeField("modulus", j.Modulus)
	if err != nil {
		return nil, err
	}
	exponent, err := decodeField("publicExponent", j.PublicExponent)
	if err != nil {
		return nil, err
	}
	return keys.NewRSAPublicKey(modulus, exponent, j.Padding)
}

func parseDSAPub(j dsaPubJSON) (*keys.DSAPublicKey, error) {
	params, err := dsaPubParams(j)
	if err != nil {
		return nil, err
	}
	return keys.NewDSAPublicKey(params)
}

func dsaPubParams(j dsaPubJSON) (keys.DSAPublicParams, error) {
	var params keys.DSAPublicParams
	var err error
	if params.P, err = decodeField("p", j.P); err != nil {
		return params, err
	}
	if params.Q, err = decodeField("q", j.Q); err != nil {
		return params, err
	}
	if params.G, err = decodeField("g", j.G); err != nil {
		return params, err
	}
	if params.Y, err = decodeField("y", j.Y); err != nil {
		return params, err
	}
	return params, nil
}

// marshalKey serializes a key back to its JSON document. Only used by
// in-memory readers and public-half derivation; persistence is the
// collaborator's concern.
func marshalKey(key keys.Key) ([]byte, error) {
	switch k := key.(type) {
	case *keys.HMACKey:
		material, err := k.Material()
		if err != nil {
			return nil, err
		}
		return json.Marshal(hmacKeyJSON{
			HMACKeyString: encodeField(material),
			Size:          len(material) * 8,
		})

	case *keys.AESKey:
		material, err := k.Material()
		if err != nil {
			return nil, err
		}
		hmacMaterial, err := k.HMACKey().Material()
		if err != nil {
			return nil, err
		}
		return json.Marshal(aesKeyJSON{
			AESKeyString: encodeField(material),
			Size:         len(material) * 8,
			Mode:         "CBC",
			HMACKey: hmacKeyJSON{
				HMACKeyString: encodeField(hmacMaterial),
				Size:          len(hmacMaterial) * 8,
			},
		})

	case *keys.RSAPublicKey:
		return json.Marshal(rsaPubDoc(k))

	case *keys.RSAPrivateKey:
		params, err := k.Params()
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsaPrivJSON{
			PublicKey:       rsaPubDoc(k.PublicKey()),
			PrivateExponent: encodeField(params.PrivateExponent),
			PrimeP:          encodeField(params.PrimeP),
			PrimeQ:          encodeField(params.PrimeQ),
			Size:            len(params.Modulus) * 8,
		})

	case *keys.DSAPublicKey:
		return json.Marshal(dsaPubDoc(k))

	case *keys.DSAPrivateKey:
		params, err := k.Params()
		if err != nil {
			return nil, err
		}
		return json.Marshal(dsaPrivJSON{
			PublicKey: dsaPubDoc(k.PublicKey()),
			X:         encodeField(params.X),
			Size:      len(params.Public.P) * 8,
		})

	case *keys.Ed25519PublicKey:
		return json.Marshal(ed25519PubJSON{PublicBytes: encodeField(k.Material())})

	case *keys.Ed25519PrivateKey:
		seed, err := k.Seed()
		if err != nil {
			return nil, err
		}
		return json.Marshal(ed25519PrivJSON{
			PublicKey: ed25519PubJSON{PublicBytes: encodeField(k.PublicKey().Material())},
			Seed:      encodeField(seed),
		})

	default:
		return nil, fmt.Errorf("%w: cannot serialize %T", ErrInvalidKeyType, key)
	}
}

func rsaPubDoc(k *keys.RSAPublicKey) rsaPubJSON {
	tag := ""
	if k.Padding() == keys.PaddingPKCS {
		tag = string(keys.PaddingPKCS)
	}
	return rsaPubJSON{
		Modulus:        encodeField(k.Modulus()),
		PublicExponent: encodeField(k.Exponent()),
		Size:           len(k.Modulus()) * 8,
		Padding:        tag,
	}
}

func dsaPubDoc(k *keys.DSAPublicKey) dsaPubJSON {
	params := k.Params()
	return dsaPubJSON{
		P:    encodeField(params.P),
		Q:    encodeField(params.Q),
		G:    encodeField(params.G),
		Y:    encodeField(params.Y),
		Size: len(params.P) * 8,
	}
}
