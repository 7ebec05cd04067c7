package wsv

import (
	"crypto/rand"
	"testing"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/consensus"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/events"
	"kintsugi.dev/node/permission"
)

func newWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld("test-chain", Parameters{
		MaxTransactionInstructions: 64,
		MaxTransactionBytes:        4096,
	})
}

func mustKeyPair(t *testing.T) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.Ed25519, rand.Reader)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return kp
}

func registerAccountWithKey(t *testing.T, w *World, id block.AccountId, kp crypto.KeyPair) {
	t.Helper()
	w.Accounts[id] = &Account{
		Id:        id,
		PublicKey: kp.Public,
		Metadata:  make(map[string]string),
		Roles:     make(map[block.RoleId]struct{}),
		Grants:    make(map[permission.Token]struct{}),
	}
}

func signTx(t *testing.T, kp crypto.KeyPair, tx block.SignedTransaction) block.SignedTransaction {
	t.Helper()
	sig, err := crypto.Sign(kp, tx.SigningBytes())
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	tx.Signature = sig
	return tx
}

func TestRegisterDomainRequiresGenesis(t *testing.T) {
	w := newWorld(t)
	owner := block.AccountId{Name: "root", Domain: "wonderland"}
	ins := block.Instruction{Kind: block.InstrRegisterDomain, Payload: EncodeRegisterDomain("wonderland", owner)}
	payload := block.TransactionPayload{Instructions: []block.Instruction{ins}}

	if reason := executeInstructions(w, owner, payload, false, nil); reason == nil {
		t.Fatalf("expected registration to be rejected outside genesis")
	}
	if reason := executeInstructions(w, owner, payload, true, nil); reason != nil {
		t.Fatalf("genesis registration rejected: %v", reason)
	}
	if _, ok := w.Domains["wonderland"]; !ok {
		t.Fatalf("domain was not registered")
	}
}

func bootstrapDomainAndAccount(t *testing.T, w *World, domain block.DomainId, owner block.AccountId) {
	t.Helper()
	ins := block.Instruction{Kind: block.InstrRegisterDomain, Payload: EncodeRegisterDomain(domain, owner)}
	payload := block.TransactionPayload{Instructions: []block.Instruction{ins}}
	if reason := executeInstructions(w, owner, payload, true, nil); reason != nil {
		t.Fatalf("bootstrap domain: %v", reason)
	}
	if err := w.grant(owner, permission.NewToken(permission.TokenRegisterAccount, string(domain))); err != nil {
		t.Fatalf("bootstrap grant: %v", err)
	}
}

func TestMintBurnTransferRoundTrip(t *testing.T) {
	w := newWorld(t)
	owner := block.AccountId{Name: "root", Domain: "wonderland"}
	w.Accounts[owner] = &Account{Id: owner, Metadata: map[string]string{}, Roles: map[block.RoleId]struct{}{}, Grants: map[permission.Token]struct{}{}}
	bootstrapDomainAndAccount(t, w, "wonderland", owner)

	alice := block.AccountId{Name: "alice", Domain: "wonderland"}
	regAlice := block.Instruction{Kind: block.InstrRegisterAccount, Payload: EncodeRegisterAccount(alice)}
	if reason := executeInstructions(w, owner, block.TransactionPayload{Instructions: []block.Instruction{regAlice}}, false, nil); reason != nil {
		t.Fatalf("register alice: %v", reason)
	}

	defId := block.AssetDefinitionId{Name: "gold", Domain: "wonderland"}
	if err := w.grant(owner, permission.NewToken(permission.TokenRegisterAssetDefinition, string(defId.Domain))); err != nil {
		t.Fatal(err)
	}
	regDef := block.Instruction{Kind: block.InstrRegisterAssetDefinition, Payload: EncodeRegisterAssetDefinition(defId, owner, true)}
	if reason := executeInstructions(w, owner, block.TransactionPayload{Instructions: []block.Instruction{regDef}}, false, nil); reason != nil {
		t.Fatalf("register asset definition: %v", reason)
	}

	ownerAsset := block.AssetId{Definition: defId, Account: owner}
	if err := w.grant(owner, permission.NewToken(permission.TokenMintAsset, owner.String())); err != nil {
		t.Fatal(err)
	}
	mint := block.Instruction{Kind: block.InstrMintAsset, Payload: EncodeAssetQuantity(ownerAsset, 100)}
	if reason := executeInstructions(w, owner, block.TransactionPayload{Instructions: []block.Instruction{mint}}, false, nil); reason != nil {
		t.Fatalf("mint: %v", reason)
	}
	if a, _ := w.Asset(ownerAsset); a.Quantity != 100 {
		t.Fatalf("expected quantity 100, got %d", a.Quantity)
	}

	if err := w.grant(owner, permission.NewToken(permission.TokenTransferAsset, ownerAsset.String())); err != nil {
		t.Fatal(err)
	}
	transfer := block.Instruction{Kind: block.InstrTransferAsset, Payload: EncodeTransferAsset(defId, owner, alice, 40)}
	if reason := executeInstructions(w, owner, block.TransactionPayload{Instructions: []block.Instruction{transfer}}, false, nil); reason != nil {
		t.Fatalf("transfer: %v", reason)
	}
	if a, _ := w.Asset(ownerAsset); a.Quantity != 60 {
		t.Fatalf("expected owner quantity 60, got %d", a.Quantity)
	}
	aliceAsset := block.AssetId{Definition: defId, Account: alice}
	if a, _ := w.Asset(aliceAsset); a.Quantity != 40 {
		t.Fatalf("expected alice quantity 40, got %d", a.Quantity)
	}

	if err := w.grant(owner, permission.NewToken(permission.TokenBurnAsset, owner.String())); err != nil {
		t.Fatal(err)
	}
	burn := block.Instruction{Kind: block.InstrBurnAsset, Payload: EncodeAssetQuantity(ownerAsset, 1000)}
	if reason := executeInstructions(w, owner, block.TransactionPayload{Instructions: []block.Instruction{burn}}, false, nil); reason == nil {
		t.Fatalf("expected overdraw burn to be rejected")
	}
}

func TestExecuteScratchNeverMutatesLiveState(t *testing.T) {
	w := newWorld(t)
	kp := mustKeyPair(t)
	owner := block.AccountId{Name: "root", Domain: "wonderland"}
	registerAccountWithKey(t, w, owner, kp)
	bootstrapDomainAndAccount(t, w, "wonderland", owner)

	ins := block.Instruction{Kind: block.InstrRegisterAccount, Payload: EncodeRegisterAccount(block.AccountId{Name: "bob", Domain: "wonderland"})}
	tx := signTx(t, kp, block.SignedTransaction{
		Authority:   owner,
		Payload:     block.TransactionPayload{Instructions: []block.Instruction{ins}},
		CreatedAtMs: 1000,
		ChainId:     "test-chain",
	})

	if reason := w.ExecuteScratch(tx); reason != nil {
		t.Fatalf("scratch execution unexpectedly rejected: %v", reason)
	}
	if _, ok := w.Accounts[block.AccountId{Name: "bob", Domain: "wonderland"}]; ok {
		t.Fatalf("ExecuteScratch must not mutate the live world")
	}
}

func TestAcceptRejectsBadSignatureAndWrongChain(t *testing.T) {
	w := newWorld(t)
	kp := mustKeyPair(t)
	other := mustKeyPair(t)
	owner := block.AccountId{Name: "root", Domain: "wonderland"}
	registerAccountWithKey(t, w, owner, kp)

	tx := block.SignedTransaction{
		Authority:   owner,
		Payload:     block.TransactionPayload{Instructions: []block.Instruction{{Kind: block.InstrSetParameter, Payload: EncodeSetParameter("WasmFuelLimit", 10)}}},
		CreatedAtMs: 1000,
		ChainId:     "test-chain",
	}

	signedWrongKey := signTx(t, other, tx)
	if err := w.Accept(signedWrongKey, 1000, 500); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}

	signedOk := signTx(t, kp, tx)
	if err := w.Accept(signedOk, 1000, 500); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	wrongChain := signedOk
	wrongChain.ChainId = "other-chain"
	wrongChain = signTx(t, kp, wrongChain)
	if err := w.Accept(wrongChain, 1000, 500); err == nil {
		t.Fatalf("expected chain id mismatch to be rejected")
	}

	tooOld := signedOk
	if err := w.Accept(tooOld, 10_000, 500); err == nil {
		t.Fatalf("expected clock drift to be rejected")
	}
}

func TestApplyBlockRecordsCommittedHeight(t *testing.T) {
	w := newWorld(t)
	kp := mustKeyPair(t)
	owner := block.AccountId{Name: "root", Domain: "wonderland"}
	registerAccountWithKey(t, w, owner, kp)
	bootstrapDomainAndAccount(t, w, "wonderland", owner)
	w.Accounts[owner].Grants[permission.NewToken(permission.TokenRegisterAccount, "wonderland")] = struct{}{}

	ins := block.Instruction{Kind: block.InstrRegisterAccount, Payload: EncodeRegisterAccount(block.AccountId{Name: "bob", Domain: "wonderland"})}
	tx := signTx(t, kp, block.SignedTransaction{
		Authority:   owner,
		Payload:     block.TransactionPayload{Instructions: []block.Instruction{ins}},
		CreatedAtMs: 1000,
		ChainId:     "test-chain",
	})

	header := block.Header{Height: 1, CreatedAtMs: 1000}
	cb := consensus.CommittedBlock{SignedBlock: block.SignedBlock{
		Block: block.Block{
			Header:       header,
			Transactions: []block.CategorizedTransaction{{Signed: tx}},
		},
	}}

	var eventCount int
	sink := func(events.Event) { eventCount++ }
	if err := w.ApplyBlock(cb, 0, sink); err != nil {
		t.Fatalf("apply block: %v", err)
	}
	if eventCount == 0 {
		t.Fatalf("expected ApplyBlock to emit at least one event")
	}

	if _, ok := w.Accounts[block.AccountId{Name: "bob", Domain: "wonderland"}]; !ok {
		t.Fatalf("expected bob to be registered after apply")
	}
	height, ok := w.Committed(tx.Hash())
	if !ok || height != 1 {
		t.Fatalf("expected tx committed at height 1, got %d, %v", height, ok)
	}
}
