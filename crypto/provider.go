package crypto

import "io"

// provider is the narrow per-algorithm backend the capability dispatches to.
// Each of the four algorithms implements this once; PublicKey/PrivateKey stay
// algorithm-agnostic byte payloads above this layer.
type provider interface {
	generate(rand io.Reader) (pub, priv []byte, err error)
	fromSeed(seed []byte) (pub, priv []byte, err error)
	derivePublic(priv []byte) ([]byte, error)
	sign(priv, payload []byte) ([]byte, error)
	verify(pub, payload, sig []byte) bool
}

var providers = map[Algorithm]provider{
	Ed25519:   ed25519Provider{},
	Secp256k1: secp256k1Provider{},
	BlsNormal: blsProvider{small: false},
	BlsSmall:  blsProvider{small: true},
}

func providerFor(a Algorithm) (provider, error) {
	p, ok := providers[a]
	if !ok {
		return nil, wrapErr(ErrAlgorithmMismatch, a.String(), nil)
	}
	return p, nil
}
