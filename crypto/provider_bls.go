package crypto

import (
	"io"

	blst "github.com/supranational/blst/bindings/go"
)

// blsProvider implements both BLS variants over BLS12-381 via blst. The
// "normal" variant (small=false) uses the MinPk scheme: public keys live in
// G1, signatures in G2. The "small" variant (small=true) uses MinSig: public
// keys live in G2, signatures in G1. Points are stored in blst's uncompressed
// Serialize form: 96 bytes for a G1 point, 192 bytes for a G2 point — smaller signatures at the cost of larger public keys, which is
// the tradeoff the two BLS algorithm variants in §4.1 name.
type blsProvider struct {
	small bool
}

var blsDST = []byte("KINTSUGI-BLS-SIG-BLS12381G2_XMD:SHA-256_SSWU_RO_")

func (p blsProvider) generate(rand io.Reader) (pub, priv []byte, err error) {
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(rand, ikm); err != nil {
		return nil, nil, err
	}
	return p.fromSeed(ikm)
}

func (p blsProvider) fromSeed(seed []byte) (pub, priv []byte, err error) {
	if len(seed) < 32 {
		return nil, nil, wrapErr(ErrBadPayloadLength, "bls seed must be at least 32 bytes", nil)
	}
	sk := blst.KeyGen(seed)
	if sk == nil {
		return nil, nil, wrapErr(ErrParse, "bls key generation failed", nil)
	}
	pub, err = p.derivePublic(sk.Serialize())
	if err != nil {
		return nil, nil, err
	}
	return pub, sk.Serialize(), nil
}

func (p blsProvider) derivePublic(priv []byte) ([]byte, error) {
	sk := new(blst.SecretKey)
	sk.Deserialize(priv)
	if p.small {
		pk := new(blst.P2Affine).From(sk)
		return pk.Serialize(), nil
	}
	pk := new(blst.P1Affine).From(sk)
	return pk.Serialize(), nil
}

func (p blsProvider) sign(priv, payload []byte) ([]byte, error) {
	sk := new(blst.SecretKey)
	sk.Deserialize(priv)
	if p.small {
		sig := new(blst.P1Affine).Sign(sk, payload, blsDST)
		return sig.Serialize(), nil
	}
	sig := new(blst.P2Affine).Sign(sk, payload, blsDST)
	return sig.Serialize(), nil
}

func (p blsProvider) verify(pub, payload, sig []byte) bool {
	if p.small {
		pk := new(blst.P2Affine).Deserialize(pub)
		sg := new(blst.P1Affine).Deserialize(sig)
		if pk == nil || sg == nil {
			return false
		}
		return sg.Verify(true, pk, true, payload, blsDST)
	}
	pk := new(blst.P1Affine).Deserialize(pub)
	sg := new(blst.P2Affine).Deserialize(sig)
	if pk == nil || sg == nil {
		return false
	}
	return sg.Verify(true, pk, true, payload, blsDST)
}
