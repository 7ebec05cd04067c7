package statecache

import (
	"path/filepath"
	"testing"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

func mustHash(t *testing.T, seed byte) hash.Hash[hash.Tx] {
	t.Helper()
	var b [hash.Size]byte
	b[0] = seed
	h, err := hash.FromBytes[hash.Tx](b[:])
	if err != nil {
		t.Fatalf("build hash: %v", err)
	}
	return h
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statecache.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTxHeightRoundTrip(t *testing.T) {
	db := openTestDB(t)
	h := mustHash(t, 1)

	if _, ok, err := db.TxHeight(h); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	if err := db.PutTxHeight(h, 42); err != nil {
		t.Fatalf("put: %v", err)
	}
	height, ok, err := db.TxHeight(h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || height != 42 {
		t.Fatalf("expected height 42, got %d, ok=%v", height, ok)
	}
}

func TestTxHeightSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statecache.db")
	h := mustHash(t, 2)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.PutTxHeight(h, 7); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	height, ok, err := reopened.TxHeight(h)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !ok || height != 7 {
		t.Fatalf("expected height 7 after reopen, got %d, ok=%v", height, ok)
	}
}

func TestTriggerUndoRoundTripAndOverwrite(t *testing.T) {
	db := openTestDB(t)
	id := block.TriggerId("expire_offers")

	if _, ok, err := db.TriggerUndo(id); err != nil || ok {
		t.Fatalf("expected miss for unknown trigger, got ok=%v err=%v", ok, err)
	}

	first := MutationLog{TriggerId: id, AtHeight: 10, Targets: []string{"alice@wonderland", "bob@wonderland"}}
	if err := db.PutTriggerUndo(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	got, ok, err := db.TriggerUndo(id)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if !ok || got.AtHeight != 10 || len(got.Targets) != 2 {
		t.Fatalf("unexpected first mutation log: %+v ok=%v", got, ok)
	}
	if got.Targets[0] != "alice@wonderland" || got.Targets[1] != "bob@wonderland" {
		t.Fatalf("unexpected targets: %+v", got.Targets)
	}

	second := MutationLog{TriggerId: id, AtHeight: 20, Targets: []string{"carol@wonderland"}}
	if err := db.PutTriggerUndo(second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	got, ok, err = db.TriggerUndo(id)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if !ok || got.AtHeight != 20 || len(got.Targets) != 1 || got.Targets[0] != "carol@wonderland" {
		t.Fatalf("expected second put to overwrite first, got %+v", got)
	}
}

func TestTriggerUndoNoTargets(t *testing.T) {
	db := openTestDB(t)
	id := block.TriggerId("no_op_trigger")

	if err := db.PutTriggerUndo(MutationLog{TriggerId: id, AtHeight: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := db.TriggerUndo(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || got.AtHeight != 3 || len(got.Targets) != 0 {
		t.Fatalf("unexpected mutation log with no targets: %+v ok=%v", got, ok)
	}
}
