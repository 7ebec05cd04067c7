// Package crypto implements the node's key-pair, signing, verification and
// content-hashing capability. Four signature schemes coexist behind a single
// Algorithm sum type; the rest of the core treats keys and signatures as
// opaque, algorithm-tagged byte payloads.
package crypto

import "fmt"

type Algorithm uint8

const (
	Ed25519 Algorithm = iota
	Secp256k1
	BlsNormal
	BlsSmall
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case Secp256k1:
		return "secp256k1"
	case BlsNormal:
		return "bls_normal"
	case BlsSmall:
		return "bls_small"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// multicodec-style single-byte tag used by the public-key textual form
// (§6: "<algorithm-multicodec-hex><length-hex><payload-hex>").
func (a Algorithm) code() byte {
	switch a {
	case Ed25519:
		return 0xED
	case Secp256k1:
		return 0xE7
	case BlsNormal:
		return 0xEA
	case BlsSmall:
		return 0xEB
	default:
		return 0xFF
	}
}

func algorithmFromCode(code byte) (Algorithm, error) {
	switch code {
	case 0xED:
		return Ed25519, nil
	case 0xE7:
		return Secp256k1, nil
	case 0xEA:
		return BlsNormal, nil
	case 0xEB:
		return BlsSmall, nil
	default:
		return 0, fmt.Errorf("crypto: unknown algorithm code 0x%02x", code)
	}
}
