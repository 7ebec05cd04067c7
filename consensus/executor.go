package consensus

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

// TxExecutor is the minimal view of the world state the life-cycle needs in
// order to categorise and re-execute transactions deterministically
// (§4.3.1, §4.3.3 step 6). wsv.World implements this; consensus never
// imports wsv — the dependency runs wsv → consensus → block, never the
// reverse, per the Arc-cycle resolution in the Design Notes.
type TxExecutor interface {
	// ExecuteScratch re-executes tx's instructions against a scratch copy
	// of the world state and returns the rejection reason, if execution
	// failed. A nil return means the transaction is approved.
	ExecuteScratch(tx block.SignedTransaction) *block.RejectionReason

	// Accept performs the syntactic + signature + chain-id + clock-drift +
	// per-tx-limit checks of §4.3.3 step 6 ahead of re-execution.
	Accept(tx block.SignedTransaction, nowMs uint64, maxClockDriftMs uint64) error

	// Committed reports whether txHash is already recorded in the
	// committed tx→height map, and at what height.
	Committed(txHash hash.Hash[hash.Tx]) (height uint64, ok bool)
}

// Tip describes the chain tip (or its parent, for soft-fork validation) —
// the minimum a life-cycle transition needs to know about the previous
// block without depending on kura or wsv.
type Tip struct {
	Height      uint64
	Hash        hash.Hash[hash.Block]
	CreatedAtMs uint64
}
