package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"kintsugi.dev/node/hash"
)

func TestKeyPairSignVerifyRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Ed25519, Secp256k1, BlsNormal, BlsSmall} {
		algo := algo
		t.Run(algo.String(), func(t *testing.T) {
			kp, err := GenerateKeyPair(algo, rand.Reader)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			payload := []byte("kintsugi block header bytes")
			sig, err := Sign(kp, payload)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if !Verify(kp.Public, payload, sig) {
				t.Fatalf("expected signature to verify")
			}
			if Verify(kp.Public, []byte("tampered"), sig) {
				t.Fatalf("expected signature over different payload to fail")
			}
		})
	}
}

func TestKeyPairFromPrivateKeyMismatch(t *testing.T) {
	a, err := GenerateKeyPair(Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	b, err := GenerateKeyPair(Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}
	if _, err := KeyPairFromPrivateKey(a.Private.Expose(), b.Public); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestKeyPairFromPrivateKeyAlgorithmMismatch(t *testing.T) {
	a, err := GenerateKeyPair(Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519: %v", err)
	}
	b, err := GenerateKeyPair(Secp256k1, rand.Reader)
	if err != nil {
		t.Fatalf("generate secp256k1: %v", err)
	}
	if _, err := KeyPairFromPrivateKey(a.Private.Expose(), b.Public); err == nil {
		t.Fatalf("expected algorithm mismatch error")
	}
}

func TestPublicKeyCodecRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Ed25519, Secp256k1, BlsNormal, BlsSmall} {
		kp, err := GenerateKeyPair(algo, rand.Reader)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		display := kp.Public.String()
		parsed, err := ParsePublicKey(display)
		if err != nil {
			t.Fatalf("parse %q: %v", display, err)
		}
		if !parsed.Equal(kp.Public) {
			t.Fatalf("round trip mismatch for %s", algo)
		}
	}
}

func TestPrivateKeyNeverPrints(t *testing.T) {
	kp, err := GenerateKeyPair(Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s := kp.Private.String()
	if bytes.Contains([]byte(s), kp.Private.Expose().Payload) {
		t.Fatalf("private key payload leaked through String()")
	}
}

func TestMerkleRootSingleLeafIsLeaf(t *testing.T) {
	leaf := hash.Hash[hash.Tx]{1, 2, 3}
	root, err := MerkleRoot([]hash.Hash[hash.Tx]{leaf})
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	if hash.Hash[hash.Tx](root) != leaf {
		t.Fatalf("expected single-leaf root to equal the leaf")
	}
}

func TestMerkleRootEmptyIsError(t *testing.T) {
	if _, err := MerkleRoot(nil); err == nil {
		t.Fatalf("expected error for empty leaf set")
	}
}

func TestMerkleRootOddPromotion(t *testing.T) {
	a := hash.Hash[hash.Tx]{1}
	b := hash.Hash[hash.Tx]{2}
	c := hash.Hash[hash.Tx]{3}
	root, err := MerkleRoot([]hash.Hash[hash.Tx]{a, b, c})
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	ab := sum256(append(append([]byte{}, a[:]...), b[:]...))
	want := sum256(append(append([]byte{}, ab[:]...), c[:]...))
	if [32]byte(root) != want {
		t.Fatalf("odd-level promotion did not match expected hash")
	}
}
