package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
)

// PublicKey is an algorithm-tagged, self-describing public key. Equality is
// decided from Algorithm+Payload alone; parsing of the inner key material
// (e.g. curve-point decompression) is deferred to first sign/verify use by
// the underlying provider, per §4.1.
type PublicKey struct {
	Algorithm Algorithm
	Payload   []byte
}

func (k PublicKey) String() string {
	return encodeMultihash(k.Algorithm, k.Payload)
}

func (k PublicKey) Equal(other PublicKey) bool {
	return k.Algorithm == other.Algorithm && bytes.Equal(k.Payload, other.Payload)
}

// Fingerprint is a short, stable identifier for a public key — distinct from
// the content-hash function used for headers/transactions — suitable for
// peer identifiers in a Topology.
func (k PublicKey) Fingerprint() string {
	f := keyFingerprint(append([]byte{k.Algorithm.code()}, k.Payload...))
	return hex.EncodeToString(f[:8])
}

// ParsePublicKey decodes the §6 textual form.
func ParsePublicKey(s string) (PublicKey, error) {
	algo, payload, err := decodeMultihash(s)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Algorithm: algo, Payload: payload}, nil
}

// PrivateKey is algorithm-tagged private key material. It must never be
// logged or serialized directly — see Secret for the redacted wrapper.
type PrivateKey struct {
	Algorithm Algorithm
	Payload   []byte
}

func (k PrivateKey) String() string  { return "<redacted private key>" }
func (k PrivateKey) GoString() string { return "<redacted private key>" }

func (k PrivateKey) MarshalJSON() ([]byte, error) {
	return []byte(`"<redacted>"`), nil
}

type KeyPair struct {
	Public  PublicKey
	Private Secret[PrivateKey]
}

// GenerateKeyPair creates a fresh key pair for algo using rnd as the entropy
// source (use crypto/rand.Reader in production).
func GenerateKeyPair(algo Algorithm, rnd io.Reader) (KeyPair, error) {
	p, err := providerFor(algo)
	if err != nil {
		return KeyPair{}, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	pub, priv, err := p.generate(rnd)
	if err != nil {
		return KeyPair{}, wrapErr(ErrParse, "key generation", err)
	}
	return KeyPair{
		Public:  PublicKey{Algorithm: algo, Payload: pub},
		Private: NewSecret(PrivateKey{Algorithm: algo, Payload: priv}),
	}, nil
}

// KeyPairFromSeed derives a deterministic key pair from a seed — used by
// devnet/test tooling and genesis key provisioning.
func KeyPairFromSeed(algo Algorithm, seed []byte) (KeyPair, error) {
	p, err := providerFor(algo)
	if err != nil {
		return KeyPair{}, err
	}
	pub, priv, err := p.fromSeed(seed)
	if err != nil {
		return KeyPair{}, wrapErr(ErrParse, "key derivation from seed", err)
	}
	return KeyPair{
		Public:  PublicKey{Algorithm: algo, Payload: pub},
		Private: NewSecret(PrivateKey{Algorithm: algo, Payload: priv}),
	}, nil
}

// KeyPairFromPrivateKey reconstructs a KeyPair given both halves, failing
// with a descriptive error if their algorithms disagree or the public key
// does not match what the private key derives.
func KeyPairFromPrivateKey(priv PrivateKey, pub PublicKey) (KeyPair, error) {
	if priv.Algorithm != pub.Algorithm {
		return KeyPair{}, wrapErr(ErrAlgorithmMismatch,
			priv.Algorithm.String()+" != "+pub.Algorithm.String(), nil)
	}
	p, err := providerFor(priv.Algorithm)
	if err != nil {
		return KeyPair{}, err
	}
	derived, err := p.derivePublic(priv.Payload)
	if err != nil {
		return KeyPair{}, wrapErr(ErrKeyDerivation, "deriving public key", err)
	}
	if !bytes.Equal(derived, pub.Payload) {
		return KeyPair{}, wrapErr(ErrKeyDerivation, "supplied public key does not match private key", nil)
	}
	return KeyPair{
		Public:  pub,
		Private: NewSecret(priv),
	}, nil
}
