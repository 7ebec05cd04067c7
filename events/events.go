// Package events defines the data events the block life-cycle and the
// world-state view emit. There is no global buffer (§9 Design Notes): every
// producer takes a Sink closure and calls it per event, so the caller
// decides whether to collect, forward, or discard them.
package events

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

// Sink receives one event at a time. Implementations must not block for
// long — it is called while the producer still holds its work in progress.
type Sink func(Event)

// Event is the closed set of event kinds a block apply or life-cycle
// transition can produce. Exactly one of the typed fields is non-zero;
// Kind says which.
type Event struct {
	Kind    Kind
	Tx      *TransactionEvent
	Block   *BlockEvent
	Time    *TimeEvent
	Trigger *TriggerCompletedEvent
	Data    *DataEvent
}

type Kind int

const (
	KindTransaction Kind = iota
	KindBlock
	KindTime
	KindTriggerCompleted
	KindData
)

// TransactionStatus is Approved or Rejected(reason); the reason is carried
// directly on the categorised transaction, so the event only needs to know
// which it was.
type TransactionStatus int

const (
	TxApproved TransactionStatus = iota
	TxRejected
)

type TransactionEvent struct {
	BlockHeight uint64
	TxHash      hash.Hash[hash.Tx]
	Status      TransactionStatus
	Reason      *block.RejectionReason
}

func NewTransactionEvent(height uint64, txHash hash.Hash[hash.Tx], reason *block.RejectionReason) Event {
	status := TxApproved
	if reason != nil {
		status = TxRejected
	}
	return Event{Kind: KindTransaction, Tx: &TransactionEvent{BlockHeight: height, TxHash: txHash, Status: status, Reason: reason}}
}

// BlockStatus distinguishes the "block entered Valid" event from "block
// entered Committed" (§4.3.6).
type BlockStatus int

const (
	BlockApproved BlockStatus = iota
	BlockCommitted
)

type BlockEvent struct {
	Header block.Header
	Status BlockStatus
}

func NewBlockEvent(header block.Header, status BlockStatus) Event {
	return Event{Kind: KindBlock, Block: &BlockEvent{Header: header, Status: status}}
}

// TimeEvent spans the interval between the previous and current block's
// creation timestamps; triggers with time filters match against it
// (§4.4.1 step 1, §4.4.1 step 4).
type TimeEvent struct {
	PrevMs    uint64
	CurrentMs uint64
}

func NewTimeEvent(prevMs, currentMs uint64) Event {
	return Event{Kind: KindTime, Time: &TimeEvent{PrevMs: prevMs, CurrentMs: currentMs}}
}

type TriggerCompletedEvent struct {
	TriggerId block.TriggerId
	Success   bool
	Err       string
}

func NewTriggerCompletedEvent(id block.TriggerId, err error) Event {
	te := &TriggerCompletedEvent{TriggerId: id, Success: err == nil}
	if err != nil {
		te.Err = err.Error()
	}
	return Event{Kind: KindTriggerCompleted, Trigger: te}
}

// DataEventKind names the entity-level mutation a DataEvent reports
// (§4.4.4: "every successful mutation emits the corresponding data event").
type DataEventKind int

const (
	DataDomainRegistered DataEventKind = iota
	DataDomainUnregistered
	DataAccountRegistered
	DataAccountUnregistered
	DataAssetDefinitionRegistered
	DataAssetDefinitionUnregistered
	DataAssetMinted
	DataAssetBurned
	DataAssetTransferred
	DataMetadataSet
	DataMetadataRemoved
	DataPermissionGranted
	DataPermissionRevoked
	DataRoleRegistered
	DataRoleUnregistered
	DataRoleGranted
	DataRoleRevoked
	DataTriggerRegistered
	DataTriggerUnregistered
	DataParameterSet
	DataExecutorUpgraded
)

type DataEvent struct {
	Kind   DataEventKind
	Target string // stringified id of the affected entity
}

func NewDataEvent(kind DataEventKind, target string) Event {
	return Event{Kind: KindData, Data: &DataEvent{Kind: kind, Target: target}}
}
