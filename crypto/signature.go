package crypto

// Signature is an algorithm-tagged signature payload.
type Signature struct {
	Algorithm Algorithm
	Payload   []byte
}

// Sign produces a Signature over payload using authority's private key.
func Sign(authority KeyPair, payload []byte) (Signature, error) {
	p, err := providerFor(authority.Public.Algorithm)
	if err != nil {
		return Signature{}, err
	}
	sig, err := p.sign(authority.Private.Expose().Payload, payload)
	if err != nil {
		return Signature{}, wrapErr(ErrVerify, "signing", err)
	}
	return Signature{Algorithm: authority.Public.Algorithm, Payload: sig}, nil
}

// Verify checks sig over payload against pub. A pass/fail boolean, never an
// error — an unparseable signature or key is simply not valid.
func Verify(pub PublicKey, payload []byte, sig Signature) bool {
	if pub.Algorithm != sig.Algorithm {
		return false
	}
	p, err := providerFor(pub.Algorithm)
	if err != nil {
		return false
	}
	return p.verify(pub.Payload, payload, sig.Payload)
}
