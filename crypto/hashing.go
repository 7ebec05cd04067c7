package crypto

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// sum256 is the node's single content-hashing entry point: block headers,
// transaction identities and Merkle nodes all hash through this.
func sum256(b []byte) [32]byte {
	h := sha3.New256()
	_, _ = h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sum256 exposes the content-hash function to other packages (block, kura)
// so header/tx hashing stays on one implementation.
func Sum256(b []byte) [32]byte {
	return sum256(b)
}

// keyFingerprint is a short, distinct digest used only for the public-key
// multihash form's visual identity — separate from content hashing so a
// change of hash algorithm for one never silently affects the other.
func keyFingerprint(b []byte) [32]byte {
	return blake2b.Sum256(b)
}
