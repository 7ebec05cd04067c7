package block

import (
	"crypto/rand"
	"testing"

	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

func testSignedBlock(t *testing.T, seed byte) SignedBlock {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	tx := SignedTransaction{
		Authority:   AccountId{Name: "alice", Domain: "wonderland"},
		Payload:     TransactionPayload{Instructions: []Instruction{{Kind: InstrRegisterAccount, Payload: []byte{seed}}}},
		CreatedAtMs: 1000 + uint64(seed),
		ChainId:     "test-chain",
	}
	sig, err := crypto.Sign(kp, tx.signingBytes())
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	tx.Signature = sig

	txHash := tx.Hash()
	root, err := crypto.MerkleRoot([]hash.Hash[hash.Tx]{txHash})
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}

	header := Header{
		Height:           1,
		TransactionsRoot: root,
		CreatedAtMs:      tx.CreatedAtMs + 1,
	}

	blockSig, err := crypto.Sign(kp, header.encode())
	if err != nil {
		t.Fatalf("sign header: %v", err)
	}

	return SignedBlock{
		Block: Block{
			Header:       header,
			Transactions: []CategorizedTransaction{{Signed: tx}},
		},
		Signatures: []BlockSignature{{SignatoryIndex: 0, Signature: blockSig}},
	}
}

func TestEncodeDecodeSignedBlockRoundTrip(t *testing.T) {
	sb := testSignedBlock(t, 7)
	encoded := EncodeSignedBlock(sb)
	decoded, err := DecodeSignedBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Hash() != sb.Hash() {
		t.Fatalf("hash mismatch after round trip")
	}
	if len(decoded.Block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(decoded.Block.Transactions))
	}
	if !decoded.Block.Transactions[0].Approved() {
		t.Fatalf("expected approved transaction")
	}
}

func TestDecodeSignedBlockRejectsEmptyBlock(t *testing.T) {
	header := Header{Height: 1, TransactionsRoot: hash.Hash[hash.Merkle]{1}}
	out := make([]byte, 0)
	out = append(out, wireVersion)
	out = append(out, header.encode()...)
	out = appendCompactSize(out, 0) // zero transactions: invalid per §3
	out = appendCompactSize(out, 0)
	if _, err := DecodeSignedBlock(out); err == nil {
		t.Fatalf("expected error decoding empty block")
	}
}

func TestTopologyRoles(t *testing.T) {
	peers := make([]TopologyPeer, 4)
	for i := range peers {
		kp, err := crypto.GenerateKeyPair(crypto.Ed25519, rand.Reader)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		peers[i] = TopologyPeer{PublicKey: kp.Public}
	}
	topo := Topology{Peers: peers}
	if topo.RoleOf(0) != RoleLeader {
		t.Fatalf("expected leader at index 0")
	}
	if topo.RoleOf(3) != RoleProxyTail {
		t.Fatalf("expected proxy tail at last index")
	}
	if topo.RoleOf(1) != RoleValidatingPeer || topo.RoleOf(2) != RoleValidatingPeer {
		t.Fatalf("expected validating peers in the middle")
	}
	if got := topo.MinVotesForCommit(); got != 3 {
		t.Fatalf("expected quorum 3 for n=4, got %d", got)
	}
}
