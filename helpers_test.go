package keyczar

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Asymmetric generation is slow, so one document per type is generated
// lazily and reloaded wherever a test needs a key of that type.
var cachedKeyDoc = struct {
	sync.Mutex
	docs map[KeyType][]byte
}{docs: make(map[KeyType][]byte)}

func keyDocFor(t *testing.T, kt KeyType, purpose Purpose) []byte {
	t.Helper()
	cachedKeyDoc.Lock()
	defer cachedKeyDoc.Unlock()
	if doc, ok := cachedKeyDoc.docs[kt]; ok {
		return doc
	}
	mem, err := NewMemoryReader("cache", purpose, kt)
	require.NoError(t, err)
	v, err := mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)
	doc, err := mem.Key(v)
	require.NoError(t, err)
	cachedKeyDoc.docs[kt] = doc
	return doc
}

// newTestSet builds a one-version key set with a cached key document.
func newTestSet(t *testing.T, purpose Purpose, kt KeyType) *KeySet {
	t.Helper()
	mem, err := NewMemoryReader("test", purpose, kt)
	require.NoError(t, err)
	_, err = mem.AddKeyJSON(StatusPrimary, keyDocFor(t, kt, purpose))
	require.NoError(t, err)
	ks, err := ReadKeySet(mem)
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

// newRotatedHMACReader builds an HMAC signing set with a fresh key per
// version: version 1 Active, version 2 Primary.
func newRotatedHMACReader(t *testing.T) *MemoryReader {
	t.Helper()
	mem, err := NewMemoryReader("rotated", PurposeSignAndVerify, HMACSHA1)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)
	_, err = mem.AddNewKey(StatusPrimary)
	require.NoError(t, err)
	return mem
}

func readSet(t *testing.T, r Reader) *KeySet {
	t.Helper()
	ks, err := ReadKeySet(r)
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}
