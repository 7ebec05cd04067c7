package crypto

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

type secp256k1Provider struct{}

func (secp256k1Provider) generate(rand io.Reader) (pub, priv []byte, err error) {
	priv32 := make([]byte, 32)
	for {
		if _, err := io.ReadFull(rand, priv32); err != nil {
			return nil, nil, err
		}
		k := secp256k1.PrivKeyFromBytes(priv32)
		if k != nil {
			return k.PubKey().SerializeCompressed(), priv32, nil
		}
	}
}

func (p secp256k1Provider) fromSeed(seed []byte) (pub, priv []byte, err error) {
	if len(seed) != 32 {
		return nil, nil, wrapErr(ErrBadPayloadLength, "secp256k1 seed must be 32 bytes", nil)
	}
	k := secp256k1.PrivKeyFromBytes(seed)
	return k.PubKey().SerializeCompressed(), seed, nil
}

func (secp256k1Provider) derivePublic(priv []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, wrapErr(ErrBadPayloadLength, "secp256k1 private key must be 32 bytes", nil)
	}
	k := secp256k1.PrivKeyFromBytes(priv)
	return k.PubKey().SerializeCompressed(), nil
}

func (secp256k1Provider) sign(priv, payload []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, wrapErr(ErrBadPayloadLength, "secp256k1 private key must be 32 bytes", nil)
	}
	k := secp256k1.PrivKeyFromBytes(priv)
	digest := sum256(payload)
	sig := ecdsa.Sign(k, digest[:])
	return sig.Serialize(), nil
}

func (secp256k1Provider) verify(pub, payload, sig []byte) bool {
	k, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sum256(payload)
	return parsed.Verify(digest[:], k)
}
