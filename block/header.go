package block

import (
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

// Header is the block header described in §3: height, optional previous
// hash (none for genesis), the transactions Merkle root, a millisecond
// creation timestamp, and the view-change index.
type Header struct {
	Height           uint64
	PrevBlockHash    *hash.Hash[hash.Block] // nil for genesis
	TransactionsRoot hash.Hash[hash.Merkle]
	CreatedAtMs      uint64
	ViewChangeIndex  uint32
}

// EncodeForSigning is the exact byte sequence a block's signatures cover.
func (h Header) EncodeForSigning() []byte {
	return h.encode()
}

func (h Header) encode() []byte {
	out := make([]byte, 0, 128)
	out = appendCompactSize(out, h.Height)
	if h.PrevBlockHash == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = append(out, h.PrevBlockHash[:]...)
	}
	out = append(out, h.TransactionsRoot[:]...)
	out = appendU64(out, h.CreatedAtMs)
	out = appendU32(out, h.ViewChangeIndex)
	return out
}

func decodeHeader(b []byte, off *int) (Header, error) {
	var h Header
	height, err := readCompactSize(b, off)
	if err != nil {
		return h, err
	}
	h.Height = height

	hasPrev, err := readBytes(b, off, 1)
	if err != nil {
		return h, err
	}
	if hasPrev[0] != 0 {
		raw, err := readBytes(b, off, hash.Size)
		if err != nil {
			return h, err
		}
		prev := hash.MustFromBytes[hash.Block](raw)
		h.PrevBlockHash = &prev
	}

	rootBytes, err := readBytes(b, off, hash.Size)
	if err != nil {
		return h, err
	}
	h.TransactionsRoot = hash.MustFromBytes[hash.Merkle](rootBytes)

	createdAt, err := readU64(b, off)
	if err != nil {
		return h, err
	}
	h.CreatedAtMs = createdAt

	viewChange, err := readU32(b, off)
	if err != nil {
		return h, err
	}
	h.ViewChangeIndex = viewChange

	return h, nil
}

// Hash is the block hash: the content hash of the encoded header (§3: "The
// block hash is the hash of the header").
func (h Header) Hash() hash.Hash[hash.Block] {
	digest := crypto.Sum256(h.encode())
	return hash.Hash[hash.Block](digest)
}
