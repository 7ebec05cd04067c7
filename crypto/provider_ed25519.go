package crypto

import (
	"crypto/ed25519"
	"io"
)

type ed25519Provider struct{}

func (ed25519Provider) generate(rand io.Reader) (pub, priv []byte, err error) {
	p, s, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	return []byte(p), []byte(s), nil
}

func (ed25519Provider) fromSeed(seed []byte) (pub, priv []byte, err error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, wrapErr(ErrBadPayloadLength, "ed25519 seed must be 32 bytes", nil)
	}
	s := ed25519.NewKeyFromSeed(seed)
	return []byte(s.Public().(ed25519.PublicKey)), []byte(s), nil
}

func (ed25519Provider) derivePublic(priv []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, wrapErr(ErrBadPayloadLength, "ed25519 private key must be 64 bytes", nil)
	}
	pub := ed25519.PrivateKey(priv).Public().(ed25519.PublicKey)
	return []byte(pub), nil
}

func (ed25519Provider) sign(priv, payload []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, wrapErr(ErrBadPayloadLength, "ed25519 private key must be 64 bytes", nil)
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), payload), nil
}

func (ed25519Provider) verify(pub, payload, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}
