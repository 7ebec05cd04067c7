package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/consensus"
	"kintsugi.dev/node/events"
)

// ApplyBlock runs the six-step committed-block application procedure of
// §4.4.1 against w, mutating it in place. prevCreatedAtMs is the previous
// block's timestamp (0 for genesis). sink receives every event the apply
// produces; pass nil to discard them.
func (w *World) ApplyBlock(cb consensus.CommittedBlock, prevCreatedAtMs uint64, sink events.Sink) error {
	header := cb.Block.Header

	// Step 1: derive the TimeEvent spanning the previous block to this one.
	timeEvent := events.NewTimeEvent(prevCreatedAtMs, header.CreatedAtMs)

	// Step 2: execute every non-rejected transaction in order, against a
	// scratch clone so an unexpected execution failure never leaves w
	// half-mutated; only a clone that fully succeeds is adopted.
	scratch := w.Clone()
	for _, tx := range cb.Block.Transactions {
		if !tx.Approved() {
			continue
		}
		reason := executeInstructions(scratch, tx.Signed.Authority, tx.Signed.Payload, header.Height == 1, sink)
		if reason != nil {
			return invalidInstr("committed transaction failed re-execution: " + reason.Message)
		}
		// Step 3: record the tx->height mapping for already-committed lookups.
		scratch.committedHeights[tx.Signed.Hash()] = header.Height
		if sink != nil {
			sink(events.NewTransactionEvent(header.Height, tx.Signed.Hash(), nil))
		}
	}

	// Step 4: feed the TimeEvent to the trigger set and process every
	// matched trigger's action, each under its own snapshot/restore so one
	// trigger's failure cannot corrupt another's (§4.4.3).
	scratch.Triggers.MatchTime()
	for _, kind := range instructionKindsIn(cb.Block.Transactions) {
		scratch.Triggers.MatchData(kind)
	}
	processMatchedTriggers(scratch, sink)

	// Step 5 and 6 (append block hash to the in-memory window, refresh
	// cached parameters) are the caller's responsibility via window.go —
	// Parameters already lives on World and reflects any SetParameter
	// instruction executed above.

	if sink != nil {
		sink(timeEvent)
	}
	w.restoreFrom(scratch)
	return nil
}

// instructionKindsIn collects the distinct instruction kinds approved
// transactions in txs carried, used to drive TriggerSet.MatchData.
func instructionKindsIn(txs []block.CategorizedTransaction) []block.InstructionKind {
	seen := make(map[block.InstructionKind]struct{})
	var out []block.InstructionKind
	for _, tx := range txs {
		if !tx.Approved() || tx.Signed.Payload.Wasm != nil {
			continue
		}
		for _, ins := range tx.Signed.Payload.Instructions {
			if _, ok := seen[ins.Kind]; ok {
				continue
			}
			seen[ins.Kind] = struct{}{}
			out = append(out, ins.Kind)
		}
	}
	return out
}

// processMatchedTriggers drains the trigger set's matched-id queue and runs
// each trigger's action under a snapshot/restore boundary: a trigger whose
// action fails leaves w as if it had never run, per §4.4.3's "a failing
// trigger's effects are fully rolled back, and do not prevent remaining
// triggers in the same block from running."
func processMatchedTriggers(w *World, sink events.Sink) {
	for _, id := range w.Triggers.ExtractMatchedIds() {
		action, repeats, ok := w.Triggers.action(id)
		if !ok || repeats.Exhausted() {
			continue
		}
		t, _ := w.Triggers.Get(id)
		before := w.Clone()
		reason := executeInstructions(w, t.Owner, action, false, sink)
		if reason != nil {
			w.restoreFrom(before)
			w.Triggers.recordOutcome(id, false)
			if sink != nil {
				sink(events.NewTriggerCompletedEvent(id, invalidInstr(reason.Message)))
			}
			continue
		}
		w.Triggers.recordOutcome(id, true)
		if sink != nil {
			sink(events.NewTriggerCompletedEvent(id, nil))
		}
	}
}
