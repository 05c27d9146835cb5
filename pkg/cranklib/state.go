package cranklib

import "sync"

// execState is the scheduler's bookkeeping: the executable-automation map and
// the in-flight transaction map. Both live under one RWMutex because the
// prune, retry-apply and batch-apply steps mutate entries in both maps and
// must be observed atomically; per-map or per-key locking would expose
// half-applied rounds to concurrent readers.
type execState struct {
	mu         sync.RWMutex
	executable map[Address]ExecutableMetadata
	inflight   map[Address]TransactionRecord
}

func newExecState() *execState {
	return &execState{
		executable: make(map[Address]ExecutableMetadata),
		inflight:   make(map[Address]TransactionRecord),
	}
}

// ingest marks refs as executable at slot, resetting any prior failure count.
func (s *execState) ingest(refs []Address, slot uint64) {
	if len(refs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.executable[ref] = ExecutableMetadata{DueSlot: slot, SimulationFailures: 0}
	}
}

// prune removes every entry whose failure count exceeded max and returns the
// removed refs.
func (s *execState) prune(max uint64) []Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []Address
	for ref, meta := range s.executable {
		if meta.SimulationFailures > max {
			delete(s.executable, ref)
			dropped = append(dropped, ref)
		}
	}
	return dropped
}

// bumpFailure increments the failure count of ref if it is still tracked.
func (s *execState) bumpFailure(ref Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta, ok := s.executable[ref]; ok {
		meta.SimulationFailures++
		s.executable[ref] = meta
	}
}

// checkableTx is an in-flight transaction old enough for a status check.
type checkableTx struct {
	ref Address
	sig Signature
}

// checkable returns the transactions sent more than ConfirmationWindow slots
// before slot.
func (s *execState) checkable(slot uint64) []checkableTx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []checkableTx
	for ref, rec := range s.inflight {
		if slot > rec.SlotSent+ConfirmationWindow {
			out = append(out, checkableTx{ref: ref, sig: rec.Signature})
		}
	}
	return out
}

// applyRetries clears confirmed transactions and requeues retriable ones with
// fresh metadata, in one critical section.
func (s *execState) applyRetries(confirmed, retriable []Address, slot uint64) {
	if len(confirmed) == 0 && len(retriable) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range confirmed {
		delete(s.inflight, ref)
	}
	for _, ref := range retriable {
		delete(s.inflight, ref)
		s.executable[ref] = ExecutableMetadata{DueSlot: slot, SimulationFailures: 0}
	}
}

// eligible returns the refs clearing the selection gates at slot, ordered by
// due slot then address so rounds are deterministic.
func (s *execState) eligible(slot uint64, pos PoolPosition) []Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eligibleRefs(s.executable, slot, pos)
}

// record returns the in-flight record for ref.
func (s *execState) record(ref Address) (TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.inflight[ref]
	return rec, ok
}

// metadata returns the executable metadata for ref.
func (s *execState) metadata(ref Address) (ExecutableMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.executable[ref]
	return meta, ok
}

// applyBatch moves every submitted ref from the executable map to the
// in-flight map in one critical section.
func (s *execState) applyBatch(submitted []SubmittedTx, slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range submitted {
		delete(s.executable, sub.Ref)
		s.inflight[sub.Ref] = TransactionRecord{SlotSent: slot, Signature: sub.Signature}
	}
}

// flush drops both entries for ref, if present.
func (s *execState) flush(ref Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executable, ref)
	delete(s.inflight, ref)
}

// counts returns the sizes of both maps.
func (s *execState) counts() (executable, inflight int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.executable), len(s.inflight)
}

// snapshotExecutable copies the executable map for introspection.
func (s *execState) snapshotExecutable() map[Address]ExecutableMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address]ExecutableMetadata, len(s.executable))
	for ref, meta := range s.executable {
		out[ref] = meta
	}
	return out
}

// snapshotInflight copies the in-flight map for introspection.
func (s *execState) snapshotInflight() map[Address]TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address]TransactionRecord, len(s.inflight))
	for ref, rec := range s.inflight {
		out[ref] = rec
	}
	return out
}
