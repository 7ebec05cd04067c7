package consensus

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/events"
	"kintsugi.dev/node/hash"
)

// PendingBlock is an ordered list of accepted transactions awaiting
// categorisation (§4.3.1).
type PendingBlock struct {
	Transactions    []block.SignedTransaction
	ViewChangeIndex uint32
}

func NewPendingBlock(txs []block.SignedTransaction, viewChangeIndex uint32) PendingBlock {
	return PendingBlock{Transactions: txs, ViewChangeIndex: viewChangeIndex}
}

// ChainedBlock carries a fully-built header and categorised transactions,
// not yet signed (§4.3.1 output).
type ChainedBlock struct {
	header block.Header
	txs    []block.CategorizedTransaction
}

func (c ChainedBlock) Header() block.Header                      { return c.header }
func (c ChainedBlock) Transactions() []block.CategorizedTransaction { return c.txs }

// Categorize builds a ChainedBlock from p: derives the header fields of
// §4.3.1 and re-executes every transaction against a scratch world state so
// rejections are deterministic across peers.
func (p PendingBlock) Categorize(prevTip *Tip, exec TxExecutor, nowMs uint64) (ChainedBlock, error) {
	if len(p.Transactions) == 0 {
		return ChainedBlock{}, newErr(ErrEmptyBlock, "pending block has no transactions")
	}

	var height uint64 = 1
	createdAt := nowMs
	var prevHashVal *hash.Hash[hash.Block]

	if prevTip != nil {
		height = prevTip.Height + 1
		h := prevTip.Hash
		prevHashVal = &h
		if prevTip.CreatedAtMs+1 > createdAt {
			createdAt = prevTip.CreatedAtMs + 1
		}
	}

	txHashes := make([]hash.Hash[hash.Tx], 0, len(p.Transactions))
	categorized := make([]block.CategorizedTransaction, 0, len(p.Transactions))
	var latestTxCreatedAt uint64
	for _, tx := range p.Transactions {
		if tx.CreatedAtMs > latestTxCreatedAt {
			latestTxCreatedAt = tx.CreatedAtMs
		}
		reason := exec.ExecuteScratch(tx)
		categorized = append(categorized, block.CategorizedTransaction{Signed: tx, Reason: reason})
		txHashes = append(txHashes, tx.Hash())
	}
	if latestTxCreatedAt+1 > createdAt {
		createdAt = latestTxCreatedAt + 1
	}

	root, err := crypto.MerkleRoot(txHashes)
	if err != nil {
		return ChainedBlock{}, newErr(ErrEmptyBlock, err.Error())
	}

	header := block.Header{
		Height:           height,
		PrevBlockHash:    prevHashVal,
		TransactionsRoot: root,
		CreatedAtMs:      createdAt,
		ViewChangeIndex:  p.ViewChangeIndex,
	}

	return ChainedBlock{header: header, txs: categorized}, nil
}

// Sign produces a Valid block: the leader signs the header, the signature's
// signatory index equal to the leader's topology position (§4.3.2).
func (c ChainedBlock) Sign(leader crypto.KeyPair, leaderIndex uint32) (EventProducing[ValidBlock], error) {
	sig, err := crypto.Sign(leader, c.header.EncodeForSigning())
	if err != nil {
		return EventProducing[ValidBlock]{}, newErr(ErrInvalidSignature, err.Error())
	}
	vb := ValidBlock{SignedBlock: block.SignedBlock{
		Block:      block.Block{Header: c.header, Transactions: c.txs},
		Signatures: []block.BlockSignature{{SignatoryIndex: leaderIndex, Signature: sig}},
	}}
	return newValidBlockEvents(vb), nil
}

// ValidBlock has collected at least the leader's signature (§4.3).
type ValidBlock struct {
	block.SignedBlock
}

// CommittedBlock has passed quorum and is ready for persistence (§4.3.5).
type CommittedBlock struct {
	block.SignedBlock
}

func newValidBlockEvents(vb ValidBlock) EventProducing[ValidBlock] {
	return EventProducing[ValidBlock]{
		value: vb,
		emit: func(sink events.Sink) {
			if sink == nil {
				return
			}
			height := vb.Block.Header.Height
			for _, tx := range vb.Block.Transactions {
				sink(events.NewTransactionEvent(height, tx.Signed.Hash(), tx.Reason))
			}
			sink(events.NewBlockEvent(vb.Block.Header, events.BlockApproved))
		},
	}
}

func newCommittedBlockEvents(cb CommittedBlock) EventProducing[CommittedBlock] {
	return EventProducing[CommittedBlock]{
		value: cb,
		emit: func(sink events.Sink) {
			if sink == nil {
				return
			}
			sink(events.NewBlockEvent(cb.Block.Header, events.BlockCommitted))
		},
	}
}

// EventProducing defers event emission until the caller supplies a sink
// (§4.3.6, §9 Design Notes): state transitions never push to a global
// buffer.
type EventProducing[T any] struct {
	value T
	emit  func(events.Sink)
}

// Emit calls sink once per produced event (if any were produced) and
// returns the wrapped value.
func (e EventProducing[T]) Emit(sink events.Sink) T {
	if e.emit != nil {
		e.emit(sink)
	}
	return e.value
}

// Value returns the wrapped value without emitting events — used when the
// caller has already decided to discard this transition's events.
func (e EventProducing[T]) Value() T { return e.value }
