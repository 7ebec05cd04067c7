package consensus

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

// StateView is the state consensus.Validate checks a candidate SignedBlock
// against — a snapshot of the world-state view, or (for a soft-fork
// candidate) the pre-tip snapshot. The caller fills it in; wsv.World can
// serve as its Executor.
type StateView struct {
	Height           uint64
	TipHash          *hash.Hash[hash.Block]
	TipParentHash    *hash.Hash[hash.Block]
	TipCreatedAtMs   uint64
	GenesisPublicKey crypto.PublicKey
	Executor         TxExecutor
}

// ValidateOptions carries the external parameters §4.3.3 needs that are not
// part of the world-state snapshot itself.
type ValidateOptions struct {
	Topology        block.Topology
	Genesis         bool
	SoftFork        bool
	NowMs           uint64
	MaxClockDriftMs uint64
}

// Validate runs the ordered checks of §4.3.3 against a received SignedBlock
// and, on success, returns a Valid block with its deferred Valid-state
// events. The first failing check aborts with its named error.
func Validate(candidate block.SignedBlock, state StateView, opts ValidateOptions) (EventProducing[ValidBlock], error) {
	header := candidate.Block.Header

	// 1. Height.
	expectedHeight := state.Height + 1
	if opts.SoftFork {
		expectedHeight = state.Height
	}
	if header.Height != expectedHeight {
		return EventProducing[ValidBlock]{}, newErr(ErrPrevBlockHeightMismatch, "unexpected block height")
	}

	// 2. Clock drift.
	if header.CreatedAtMs > opts.NowMs && header.CreatedAtMs-opts.NowMs > opts.MaxClockDriftMs {
		return EventProducing[ValidBlock]{}, newErr(ErrBlockInTheFuture, "block creation time too far ahead")
	}

	// 3. Previous hash.
	expectedPrev := state.TipHash
	if opts.SoftFork {
		expectedPrev = state.TipParentHash
	}
	if !hashPtrEqual(header.PrevBlockHash, expectedPrev) {
		return EventProducing[ValidBlock]{}, newErr(ErrPrevBlockHashMismatch, "previous hash mismatch")
	}

	// 4. Genesis vs non-genesis.
	if opts.Genesis {
		if len(candidate.Signatures) != 1 {
			return EventProducing[ValidBlock]{}, newErr(ErrInvalidSignature, "genesis block must carry exactly one signature")
		}
		sig := candidate.Signatures[0]
		if !crypto.Verify(state.GenesisPublicKey, header.EncodeForSigning(), sig.Signature) {
			return EventProducing[ValidBlock]{}, newErr(ErrInvalidSignature, "genesis signature does not verify")
		}
		for _, tx := range candidate.Block.Transactions {
			if !genesisAuthority(tx.Signed.Authority) {
				return EventProducing[ValidBlock]{}, newErr(ErrUnexpectedAuthority, "non-genesis authority in genesis block")
			}
		}
	} else {
		if header.CreatedAtMs <= state.TipCreatedAtMs {
			return EventProducing[ValidBlock]{}, newErr(ErrBlockInThePast, "block not later than previous block")
		}
		if err := validateLeaderSignature(opts.Topology, candidate.Signatures, header); err != nil {
			return EventProducing[ValidBlock]{}, err
		}
		if err := validateValidatorSignatures(opts.Topology, candidate.Signatures, header); err != nil {
			return EventProducing[ValidBlock]{}, err
		}
		if err := checkNoUndefinedSignatories(opts.Topology, candidate.Signatures); err != nil {
			return EventProducing[ValidBlock]{}, err
		}
	}

	// 5. No already-committed transactions.
	for _, tx := range candidate.Block.Transactions {
		h, ok := state.Executor.Committed(tx.Signed.Hash())
		if !ok {
			continue
		}
		if opts.SoftFork && h >= expectedHeight {
			continue
		}
		return EventProducing[ValidBlock]{}, newErr(ErrAlreadyCommitted, "transaction already committed")
	}

	// 6. Transaction re-execution.
	recategorized := make([]block.CategorizedTransaction, 0, len(candidate.Block.Transactions))
	for _, tx := range candidate.Block.Transactions {
		if err := state.Executor.Accept(tx.Signed, opts.NowMs, opts.MaxClockDriftMs); err != nil {
			return EventProducing[ValidBlock]{}, newErr(ErrTxAcceptanceFailed, err.Error())
		}
		reason := state.Executor.ExecuteScratch(tx.Signed)
		recategorized = append(recategorized, block.CategorizedTransaction{Signed: tx.Signed, Reason: reason})
	}

	vb := ValidBlock{SignedBlock: block.SignedBlock{
		Block:      block.Block{Header: header, Transactions: recategorized},
		Signatures: candidate.Signatures,
	}}
	return newValidBlockEvents(vb), nil
}

func hashPtrEqual(a, b *hash.Hash[hash.Block]) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// genesisAuthority reports whether acc is the reserved genesis account,
// matching the teacher's convention of a well-known bootstrap identity.
func genesisAuthority(acc block.AccountId) bool {
	return acc.Name == "genesis" && acc.Domain == "genesis"
}
