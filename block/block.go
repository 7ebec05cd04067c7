package block

import (
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

// Block is a header plus an ordered list of categorised transactions (§3).
type Block struct {
	Header       Header
	Transactions []CategorizedTransaction
}

// BlockSignature pairs a peer's topology index with its signature over the
// block header, per §3's "(signatory-index, signature-over-header)".
type BlockSignature struct {
	SignatoryIndex uint32
	Signature      crypto.Signature
}

// SignedBlock is the wire form: a Block plus the signatures collected
// during the voting phase.
type SignedBlock struct {
	Block      Block
	Signatures []BlockSignature
}

func (b SignedBlock) Hash() hash.Hash[hash.Block] {
	return b.Block.Header.Hash()
}

// SignatureIndices returns the set of signatory indices present, used by
// the life-cycle's duplicate-detection rules.
func (b SignedBlock) SignatureIndices() map[uint32]int {
	out := make(map[uint32]int, len(b.Signatures))
	for i, s := range b.Signatures {
		out[s.SignatoryIndex] = i
	}
	return out
}
