package consensus

import (
	"crypto/rand"
	"testing"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/events"
	"kintsugi.dev/node/hash"
)

// fakeExecutor approves everything and tracks nothing committed; enough to
// drive the life-cycle transitions under test without a real wsv.World.
type fakeExecutor struct {
	committed map[hash.Hash[hash.Tx]]uint64
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{committed: make(map[hash.Hash[hash.Tx]]uint64)}
}

func (f *fakeExecutor) ExecuteScratch(tx block.SignedTransaction) *block.RejectionReason { return nil }

func (f *fakeExecutor) Accept(tx block.SignedTransaction, nowMs, maxClockDriftMs uint64) error {
	return nil
}

func (f *fakeExecutor) Committed(txHash hash.Hash[hash.Tx]) (uint64, bool) {
	h, ok := f.committed[txHash]
	return h, ok
}

func makeTopology(t *testing.T, n int) (block.Topology, []crypto.KeyPair) {
	t.Helper()
	peers := make([]block.TopologyPeer, n)
	keys := make([]crypto.KeyPair, n)
	for i := 0; i < n; i++ {
		kp, err := crypto.GenerateKeyPair(crypto.Ed25519, rand.Reader)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		keys[i] = kp
		peers[i] = block.TopologyPeer{PublicKey: kp.Public}
	}
	return block.Topology{Peers: peers}, keys
}

func signedTx(t *testing.T, kp crypto.KeyPair, seed byte) block.SignedTransaction {
	t.Helper()
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
	return tx
}

func TestCategorizeAndSignProducesValidBlock(t *testing.T) {
	topo, keys := makeTopology(t, 4)
	exec := newFakeExecutor()
	leader := keys[0]

	tx := signedTx(t, leader, 1)
	pending := NewPendingBlock([]block.SignedTransaction{tx}, 0)
	chained, err := pending.Categorize(nil, exec, 2000)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if chained.Header().Height != 1 {
		t.Fatalf("expected genesis height 1, got %d", chained.Header().Height)
	}

	producing, err := chained.Sign(leader, uint32(topo.LeaderIndex()))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var seen []events.Event
	vb := producing.Emit(func(e events.Event) { seen = append(seen, e) })
	if len(vb.Signatures) != 1 {
		t.Fatalf("expected one signature after leader sign")
	}
	// one TransactionEvent + one BlockEvent
	if len(seen) != 2 {
		t.Fatalf("expected 2 events, got %d", len(seen))
	}
}

func TestCommitRequiresQuorum(t *testing.T) {
	topo, keys := makeTopology(t, 4)
	exec := newFakeExecutor()
	leader := keys[0]

	tx := signedTx(t, leader, 2)
	pending := NewPendingBlock([]block.SignedTransaction{tx}, 0)
	chained, err := pending.Categorize(nil, exec, 2000)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	producing, err := chained.Sign(leader, uint32(topo.LeaderIndex()))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	vb := producing.Value()

	if _, err := vb.Commit(topo, false); err == nil {
		t.Fatalf("expected commit to fail without quorum")
	}

	for i := 1; i < len(keys); i++ {
		sig, err := crypto.Sign(keys[i], vb.Block.Header.EncodeForSigning())
		if err != nil {
			t.Fatalf("sign validator %d: %v", i, err)
		}
		bs := block.BlockSignature{SignatoryIndex: uint32(i), Signature: sig}
		if topo.RoleOf(i) == block.RoleProxyTail {
			vb, err = vb.SignAsProxyTail(topo, bs)
		} else {
			vb, err = vb.AddSignature(topo, bs)
		}
		if err != nil {
			t.Fatalf("add signature %d: %v", i, err)
		}
	}

	committing, err := vb.Commit(topo, false)
	if err != nil {
		t.Fatalf("commit with quorum: %v", err)
	}
	var seen []events.Event
	cb := committing.Emit(func(e events.Event) { seen = append(seen, e) })
	if cb.Block.Header.Height != 1 {
		t.Fatalf("unexpected committed height")
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 committed event, got %d", len(seen))
	}
}

func TestLeaderSignatureMissingRejected(t *testing.T) {
	topo, keys := makeTopology(t, 4)
	if err := validateLeaderSignature(topo, nil, block.Header{}); err == nil {
		t.Fatalf("expected error for missing leader signature")
	}
	sig, err := crypto.Sign(keys[1], block.Header{}.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	err = validateLeaderSignature(topo, []block.BlockSignature{{SignatoryIndex: 1, Signature: sig}}, block.Header{})
	if err == nil {
		t.Fatalf("expected error when leader role claimed by non-leader index")
	}
}

func TestLeaderSignatureMustBeFirstInList(t *testing.T) {
	topo, keys := makeTopology(t, 4)
	header := block.Header{}

	leaderSig, err := crypto.Sign(keys[0], header.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign leader: %v", err)
	}
	validatorSig, err := crypto.Sign(keys[1], header.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign validator: %v", err)
	}

	// Leader signature present in the slice but not first: must be rejected
	// even though a role scan of the whole slice would find it.
	sigs := []block.BlockSignature{
		{SignatoryIndex: 1, Signature: validatorSig},
		{SignatoryIndex: 0, Signature: leaderSig},
	}
	if err := validateLeaderSignature(topo, sigs, header); err == nil {
		t.Fatalf("expected error when leader signature is not first")
	}

	// Leader signature first: accepted.
	sigs = []block.BlockSignature{
		{SignatoryIndex: 0, Signature: leaderSig},
		{SignatoryIndex: 1, Signature: validatorSig},
	}
	if err := validateLeaderSignature(topo, sigs, header); err != nil {
		t.Fatalf("leader signature first unexpectedly rejected: %v", err)
	}
}

func TestProxyTailSignatureMustBeLastInList(t *testing.T) {
	topo, keys := makeTopology(t, 4)
	proxyIdx := topo.ProxyTailIndex()

	proxySig, err := crypto.Sign(keys[proxyIdx], block.Header{}.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign proxy tail: %v", err)
	}
	validatorSig, err := crypto.Sign(keys[1], block.Header{}.EncodeForSigning())
	if err != nil {
		t.Fatalf("sign validator: %v", err)
	}

	// Proxy tail signature present but not last: must be rejected even
	// though a role scan of the whole slice would find it.
	sigs := []block.BlockSignature{
		{SignatoryIndex: uint32(proxyIdx), Signature: proxySig},
		{SignatoryIndex: 1, Signature: validatorSig},
	}
	if err := validateProxyTailSignature(topo, sigs); err == nil {
		t.Fatalf("expected error when proxy tail signature is not last")
	}

	// Proxy tail signature last: accepted.
	sigs = []block.BlockSignature{
		{SignatoryIndex: 1, Signature: validatorSig},
		{SignatoryIndex: uint32(proxyIdx), Signature: proxySig},
	}
	if err := validateProxyTailSignature(topo, sigs); err != nil {
		t.Fatalf("proxy tail signature last unexpectedly rejected: %v", err)
	}
}
