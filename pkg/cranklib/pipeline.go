package cranklib

import (
	"context"
	"fmt"
	"sync"
)

// executeAutomations runs the selection, build, dedupe and batch-submit
// pipeline for one round. Builds fan out concurrently since each is dominated
// by ledger round trips; the batch phase is serial. A batch transport failure
// aborts the round with no bookkeeping changes, leaving every candidate due
// at its original backoff position.
func (e *Executor) executeAutomations(ctx context.Context, slot uint64, pos PoolPosition, report *RoundReport) error {
	due := e.state.eligible(slot, pos)
	if len(due) == 0 {
		return nil
	}

	type builtTx struct {
		ref Address
		tx  *Transaction
	}
	var (
		mu    sync.Mutex
		built []builtTx
		wg    sync.WaitGroup
	)
	for _, ref := range due {
		ref := ref
		wg.Add(1)
		safeGo(e.log, &wg, "build "+ref.Short(), func() {
			tx := e.tryBuild(ctx, slot, ref)
			if tx == nil {
				return
			}
			mu.Lock()
			built = append(built, builtTx{ref: ref, tx: tx})
			mu.Unlock()
		})
	}
	wg.Wait()

	if e.hook != nil {
		kept := built[:0]
		for _, b := range built {
			if e.hook(b.ref, b.tx, slot) {
				kept = append(kept, b)
			} else {
				report.Vetoed = append(report.Vetoed, b.ref)
				e.log.Info("submit hook vetoed %s", b.ref.Short())
			}
		}
		built = kept
	}
	if len(built) == 0 {
		return nil
	}

	wire := make([][]byte, len(built))
	submitted := make([]SubmittedTx, len(built))
	for i, b := range built {
		wire[i] = b.tx.Serialize()
		submitted[i] = SubmittedTx{Ref: b.ref, Signature: b.tx.Signature()}
	}
	if err := e.submitter.SubmitBatch(ctx, wire); err != nil {
		return fmt.Errorf("submitting batch of %d: %w", len(wire), err)
	}
	e.state.applyBatch(submitted, slot)
	report.Submitted = submitted
	e.log.Info("round %d: submitted %d of %d due automations", slot, len(submitted), len(due))
	return nil
}

// tryBuild fetches one automation and builds its transaction. Fetch and build
// failures charge the automation a simulation failure; a dedupe hit just
// drops the transaction from this round.
func (e *Executor) tryBuild(ctx context.Context, slot uint64, ref Address) *Transaction {
	automation, err := e.fetcher.FetchAutomation(ctx, ref)
	if err != nil {
		e.state.bumpFailure(ref)
		return nil
	}
	tx, err := e.builder.Build(ctx, ref, automation, slot)
	if err != nil {
		e.state.bumpFailure(ref)
		return nil
	}
	if e.isDuplicate(slot, ref, tx) {
		return nil
	}
	return tx
}

// isDuplicate reports whether an identical transaction for ref is already in
// flight: same signature, sent at or before the current slot.
func (e *Executor) isDuplicate(slot uint64, ref Address, tx *Transaction) bool {
	rec, ok := e.state.record(ref)
	return ok && rec.Signature == tx.Signature() && rec.SlotSent <= slot
}
