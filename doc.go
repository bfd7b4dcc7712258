// Package keyczar provides a key-management toolkit built around versioned
// key sets and self-describing cryptographic outputs.
//
// A key set holds multiple versions of one algorithm family (HMAC-SHA1,
// AES-CBC, RSA, DSA or Ed25519). Every signature and ciphertext carries a
// five-byte header naming the format version and the identity hash of the
// key that produced it, so keys can be rotated without breaking old
// outputs: new operations use the Primary version, old payloads resolve to
// their original version by hash.
//
// Basic usage:
//
//	mem, err := keyczar.NewMemoryReader("tokens", keyczar.PurposeSignAndVerify, keyczar.HMACSHA1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := mem.AddNewKey(keyczar.StatusPrimary); err != nil {
//	    log.Fatal(err)
//	}
//
//	ks, err := keyczar.ReadKeySet(mem)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
//
//	signer, err := keyczar.NewSigner(ks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sig, err := signer.Sign([]byte("hello"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verifier, _ := keyczar.NewVerifier(ks)
//	ok, _ := verifier.Verify([]byte("hello"), sig)
//	fmt.Println("verified:", ok)
package keyczar
