package kura

import (
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func signedBlockAt(t *testing.T, height uint64, prev *hash.Hash[hash.Block], seed byte) block.SignedBlock {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tx := block.SignedTransaction{
		Authority:   block.AccountId{Name: "alice", Domain: "wonderland"},
		Payload:     block.TransactionPayload{Instructions: []block.Instruction{{Kind: block.InstrRegisterAccount, Payload: []byte{seed}}}},
		CreatedAtMs: 1000 + uint64(seed),
		ChainId:     "test-chain",
	}
	sig, err := crypto.Sign(kp, tx.SigningBytes())
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	tx.Signature = sig

	txHash := tx.Hash()
	root, err := crypto.MerkleRoot([]hash.Hash[hash.Tx]{txHash})
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}

	header := block.Header{
		Height:           height,
		PrevBlockHash:    prev,
		TransactionsRoot: root,
		CreatedAtMs:      tx.CreatedAtMs + 1,
	}
	blockSig, err := crypto.Sign(kp, header.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign header: %v", err)
	}

	return block.SignedBlock{
		Block: block.Block{
			Header:       header,
			Transactions: []block.CategorizedTransaction{{Signed: tx}},
		},
		Signatures: []block.BlockSignature{{SignatoryIndex: 0, Signature: blockSig}},
	}
}

func chain(t *testing.T, n int) []block.SignedBlock {
	t.Helper()
	out := make([]block.SignedBlock, 0, n)
	var prev *hash.Hash[hash.Block]
	for i := 0; i < n; i++ {
		sb := signedBlockAt(t, uint64(i+1), prev, byte(i))
		h := sb.Hash()
		prev = &h
		out = append(out, sb)
	}
	return out
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "kura-test-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Init(InitStrict); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s, dir
}

func TestAppendAndReadBlockRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	blocks := chain(t, 3)
	for _, sb := range blocks {
		if err := s.Append(sb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if got := s.BlockCount(); got != 3 {
		t.Fatalf("block count = %d, want 3", got)
	}

	for i, want := range blocks {
		got, err := s.ReadBlock(uint64(i + 1))
		if err != nil {
			t.Fatalf("read block %d: %v", i+1, err)
		}
		if got.Hash() != want.Hash() {
			t.Fatalf("block %d hash mismatch", i+1)
		}
	}
}

func TestReadBlockHashesMatchesHeaderHashes(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	blocks := chain(t, 3)
	for _, sb := range blocks {
		if err := s.Append(sb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	hashes, err := s.ReadBlockHashes(0, 3)
	if err != nil {
		t.Fatalf("read hashes: %v", err)
	}
	for i, sb := range blocks {
		if hashes[i] != sb.Hash() {
			t.Fatalf("hash %d mismatch", i)
		}
	}
}

func TestReadBlockOutOfRange(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	if err := s.Append(chain(t, 1)[0]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.ReadBlock(0); err == nil {
		t.Fatalf("expected error reading height 0")
	}
	if _, err := s.ReadBlock(2); err == nil {
		t.Fatalf("expected error reading past end")
	}
}

func TestReplaceTopSwapsLastBlockOnly(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	blocks := chain(t, 2)
	for _, sb := range blocks {
		if err := s.Append(sb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	replacement := signedBlockAt(t, 2, func() *hash.Hash[hash.Block] { h := blocks[0].Hash(); return &h }(), 99)
	if err := s.ReplaceTop(replacement); err != nil {
		t.Fatalf("replace top: %v", err)
	}

	if s.BlockCount() != 2 {
		t.Fatalf("block count changed by replace_top: %d", s.BlockCount())
	}
	got, err := s.ReadBlock(2)
	if err != nil {
		t.Fatalf("read block 2: %v", err)
	}
	if got.Hash() != replacement.Hash() {
		t.Fatalf("replace_top did not take effect")
	}
	first, err := s.ReadBlock(1)
	if err != nil {
		t.Fatalf("read block 1: %v", err)
	}
	if first.Hash() != blocks[0].Hash() {
		t.Fatalf("replace_top disturbed an earlier block")
	}
}

func TestLockExclusivity(t *testing.T) {
	dir, err := os.MkdirTemp("", "kura-lock-test-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	s1, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	defer s1.Close()

	_, err = Open(dir, testLogger())
	if err == nil {
		t.Fatalf("expected second open of a locked store to fail")
	}
	kerr, ok := err.(*Error)
	if !ok || kerr.Code != ErrLocked {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestStrictRecoveryTruncatesOnBrokenLinkage(t *testing.T) {
	dir, err := os.MkdirTemp("", "kura-strict-test-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Init(InitStrict); err != nil {
		t.Fatalf("init: %v", err)
	}

	blocks := chain(t, 3)
	for _, sb := range blocks {
		if err := s.Append(sb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Point block 2's index record at block 1's bytes, so the block decoded
	// at height 2 carries no PrevBlockHash and no longer links to block 1;
	// strict recovery must stop there and accept only the first block.
	if err := s.writeIndexRecord(1, 0, uint64(len(block.EncodeSignedBlock(blocks[0])))); err != nil {
		t.Fatalf("corrupt index record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.Init(InitStrict); err != nil {
		t.Fatalf("strict init: %v", err)
	}

	if got := s2.BlockCount(); got != 1 {
		t.Fatalf("strict recovery accepted %d blocks, want 1", got)
	}
	hashesCount, err := s2.ReadHashesCount()
	if err != nil {
		t.Fatalf("read hashes count: %v", err)
	}
	if hashesCount != 1 {
		t.Fatalf("hashes file not truncated to accepted prefix: %d", hashesCount)
	}
}

func TestFastInitFallsBackToStrictOnMismatch(t *testing.T) {
	dir, err := os.MkdirTemp("", "kura-fast-test-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Init(InitStrict); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sb := range chain(t, 2) {
		if err := s.Append(sb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Truncate the hashes file to simulate a crash mid-append.
	if err := s.hashes.Truncate(hashRecordSize); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.Init(InitFast); err != nil {
		t.Fatalf("fast init: %v", err)
	}
	if got := s2.BlockCount(); got != 2 {
		t.Fatalf("fast init did not fall back to strict recovery: block count = %d", got)
	}
}
