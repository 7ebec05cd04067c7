package crypto

import (
	"fmt"

	"kintsugi.dev/node/hash"
)

// MerkleRoot builds the Merkle tree over an ordered sequence of transaction
// hashes per §4.1: the hash of an empty sequence is undefined (an empty
// block is invalid and callers must reject it before reaching here); the
// hash of a single leaf is the leaf itself; an internal node's hash is
// H(left‖right); the last leaf of an odd-sized level is promoted unchanged
// rather than duplicated (unlike the classic Bitcoin rule this protocol's
// teacher used — promotion avoids the duplicate-leaf second-preimage
// ambiguity flagged against that scheme).
func MerkleRoot(leaves []hash.Hash[hash.Tx]) (hash.Hash[hash.Merkle], error) {
	var zero hash.Hash[hash.Merkle]
	if len(leaves) == 0 {
		return zero, fmt.Errorf("crypto: merkle root of empty leaf set is undefined")
	}

	level := make([][32]byte, len(leaves))
	for i, l := range leaves {
		level[i] = [32]byte(l)
	}

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			buf := make([]byte, 0, 64)
			buf = append(buf, level[i][:]...)
			buf = append(buf, level[i+1][:]...)
			next = append(next, sum256(buf))
			i += 2
		}
		level = next
	}

	return hash.Hash[hash.Merkle](level[0]), nil
}
