package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/events"
)

// matchedEntry is one (event, trigger id) pair queued for execution.
type matchedEntry struct {
	id   block.TriggerId
	kind events.Kind
}

// TriggerSet owns the registered triggers and the queue of ids matched
// against data/time/execute events during block application (§4.4.3).
type TriggerSet struct {
	triggers map[block.TriggerId]*Trigger
	matched  []matchedEntry
}

func NewTriggerSet() *TriggerSet {
	return &TriggerSet{triggers: make(map[block.TriggerId]*Trigger)}
}

func (s *TriggerSet) clone() *TriggerSet {
	out := &TriggerSet{triggers: make(map[block.TriggerId]*Trigger, len(s.triggers))}
	for k, v := range s.triggers {
		t := *v
		t.Action.Instructions = append([]block.Instruction(nil), v.Action.Instructions...)
		out.triggers[k] = &t
	}
	out.matched = append([]matchedEntry(nil), s.matched...)
	return out
}

func (s *TriggerSet) Register(t Trigger) error {
	if _, exists := s.triggers[t.Id]; exists {
		return alreadyExists("trigger already registered: " + string(t.Id))
	}
	cp := t
	s.triggers[t.Id] = &cp
	return nil
}

func (s *TriggerSet) Unregister(id block.TriggerId) error {
	if _, exists := s.triggers[id]; !exists {
		return notFound("trigger not found: " + string(id))
	}
	delete(s.triggers, id)
	return nil
}

func (s *TriggerSet) Get(id block.TriggerId) (Trigger, bool) {
	t, ok := s.triggers[id]
	if !ok {
		return Trigger{}, false
	}
	return *t, true
}

// RecordMatch queues id against an event of kind. Called once per
// registered trigger whose filter matches the event that just occurred.
func (s *TriggerSet) RecordMatch(id block.TriggerId, kind events.Kind) {
	s.matched = append(s.matched, matchedEntry{id: id, kind: kind})
}

// MatchData records every trigger whose data filter matches kind.
func (s *TriggerSet) MatchData(kind block.InstructionKind) {
	for id, t := range s.triggers {
		if !t.Filter.OnData {
			continue
		}
		if t.Filter.DataKind != nil && *t.Filter.DataKind != kind {
			continue
		}
		s.RecordMatch(id, events.KindData)
	}
}

// MatchTime records every trigger with a time filter against the block's
// TimeEvent.
func (s *TriggerSet) MatchTime() {
	for id, t := range s.triggers {
		if t.Filter.OnTime {
			s.RecordMatch(id, events.KindTime)
		}
	}
}

// MatchExecute records id if it carries an explicit ExecuteTrigger filter
// flag — driven by an InstrExecuteTrigger instruction naming it directly.
func (s *TriggerSet) MatchExecute(id block.TriggerId) {
	if t, ok := s.triggers[id]; ok && t.Filter.OnExecute {
		s.RecordMatch(id, events.KindTriggerCompleted)
	}
}

// ExtractMatchedIds drains the queue of (event, id) pairs accumulated this
// block, in FIFO order.
func (s *TriggerSet) ExtractMatchedIds() []block.TriggerId {
	out := make([]block.TriggerId, len(s.matched))
	for i, m := range s.matched {
		out[i] = m.id
	}
	s.matched = nil
	return out
}

// action returns id's action and its current repeat count, looked up by id
// alone. TriggerSet holds no lock of its own; callers run it under whatever
// lock guards the World that owns it.
func (s *TriggerSet) action(id block.TriggerId) (block.TransactionPayload, Repeats, bool) {
	t, ok := s.triggers[id]
	if !ok {
		return block.TransactionPayload{}, Repeats{}, false
	}
	return t.Action, t.Repeats, true
}

func (s *TriggerSet) recordOutcome(id block.TriggerId, success bool) {
	t, ok := s.triggers[id]
	if !ok {
		return
	}
	if success {
		t.Repeats = t.Repeats.decrement()
	}
}
