package cranklib

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/crankd/crankd/pkg/logger"
)

const testWorkerID = 7

func addrOf(b byte) Address {
	var a Address
	a[0] = b
	a[31] = b
	return a
}

type statusResult struct {
	status *SignatureStatus
	err    error
}

// fakeLedger implements AccountFetcher, StatusChecker and BatchSubmitter
// against in-memory state.
type fakeLedger struct {
	mu          sync.Mutex
	automations map[Address]*Automation
	pool        *Pool
	registry    *Registry
	snapshot    *Snapshot
	frame       *SnapshotFrame
	statuses    map[Signature]statusResult
	fetchErr    map[Address]error
	poolErr     error
	submitErr   error
	batches     [][][]byte
	queries     int
}

func newFakeLedger(poolWorkers ...Address) *fakeLedger {
	return &fakeLedger{
		automations: make(map[Address]*Automation),
		pool:        &Pool{ID: 0, Size: 2, Workers: poolWorkers},
		registry:    &Registry{CurrentEpoch: 3, TotalWorkers: 5},
		snapshot:    &Snapshot{ID: 3, TotalFrames: 5, TotalStake: 1000},
		frame:       &SnapshotFrame{ID: testWorkerID, StakeAmount: 100, Worker: WorkerAddress(testWorkerID)},
		statuses:    make(map[Signature]statusResult),
		fetchErr:    make(map[Address]error),
	}
}

func (f *fakeLedger) addAutomation(ref Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.automations[ref] = &Automation{
		Authority: addrOf(0xaa),
		ID:        ref.Short(),
		Trigger:   ImmediateTrigger(),
	}
}

func (f *fakeLedger) FetchAutomation(_ context.Context, addr Address) (*Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fetchErr[addr]; ok {
		return nil, err
	}
	aut, ok := f.automations[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return aut, nil
}

func (f *fakeLedger) FetchPool(_ context.Context, _ Address) (*Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	return f.pool, nil
}

func (f *fakeLedger) FetchRegistry(_ context.Context, _ Address) (*Registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry, nil
}

func (f *fakeLedger) FetchSnapshot(_ context.Context, _ Address) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeLedger) FetchSnapshotFrame(_ context.Context, _ Address) (*SnapshotFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, nil
}

func (f *fakeLedger) SignatureStatus(_ context.Context, sig Signature) (*SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	res := f.statuses[sig]
	return res.status, res.err
}

func (f *fakeLedger) SubmitBatch(_ context.Context, txs [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.batches = append(f.batches, txs)
	return nil
}

// fakeBuilder signs deterministic transactions so identical rounds produce
// identical signatures.
type fakeBuilder struct {
	mu        sync.Mutex
	kp        *Keypair
	blockhash Hash
	buildErr  error
	builds    int
}

func newFakeBuilder(t *testing.T) *fakeBuilder {
	t.Helper()
	kp, err := KeypairFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("building test keypair: %v", err)
	}
	return &fakeBuilder{kp: kp, blockhash: Hash{1}}
}

func (b *fakeBuilder) Build(_ context.Context, ref Address, _ *Automation, _ uint64) (*Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	tx := NewTransaction(b.kp.Address(), b.blockhash, Instruction{
		ProgramID: AutomationProgramID,
		Data:      append(instructionSighash("automation_exec"), ref[:]...),
	})
	if err := tx.Sign(b.kp); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *fakeBuilder) BuildRotation(_ context.Context, state RotationState) (*Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state.Registry.Locked {
		return nil, errors.New("registry is locked")
	}
	tx := NewTransaction(b.kp.Address(), b.blockhash, Instruction{
		ProgramID: NetworkProgramID,
		Data:      instructionSighash("pool_rotate"),
	})
	if err := tx.Sign(b.kp); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *fakeBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

func newTestExecutor(t *testing.T, ledger *fakeLedger, builder *fakeBuilder, hook SubmitHook) *Executor {
	t.Helper()
	e, err := NewExecutor(ledger, ledger, ledger, builder, &ExecutorOpts{
		WorkerID: testWorkerID,
		Hook:     hook,
		Logger:   logger.NewNopLogger(),
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func round(t *testing.T, e *Executor, slot uint64, triggered ...Address) *RoundReport {
	t.Helper()
	report, err := e.ExecuteRound(context.Background(), triggered, slot)
	if err != nil {
		t.Fatalf("ExecuteRound(slot=%d): %v", slot, err)
	}
	return report
}

func wantMetadata(t *testing.T, e *Executor, ref Address, due, failures uint64) {
	t.Helper()
	meta, ok := e.Metadata(ref)
	if !ok {
		t.Fatalf("metadata for %s missing", ref.Short())
	}
	if meta.DueSlot != due || meta.SimulationFailures != failures {
		t.Fatalf("metadata for %s = %+v, want due=%d failures=%d", ref.Short(), meta, due, failures)
	}
}

func wantNoMetadata(t *testing.T, e *Executor, ref Address) {
	t.Helper()
	if meta, ok := e.Metadata(ref); ok {
		t.Fatalf("metadata for %s = %+v, want none", ref.Short(), meta)
	}
}

func wantNoRecord(t *testing.T, e *Executor, ref Address) {
	t.Helper()
	if rec, ok := e.Record(ref); ok {
		t.Fatalf("record for %s = %+v, want none", ref.Short(), rec)
	}
}

func TestNewExecutorRequiresCollaborators(t *testing.T) {
	ledger := newFakeLedger()
	builder := newFakeBuilder(t)
	if _, err := NewExecutor(nil, ledger, ledger, builder, nil); err == nil {
		t.Error("nil fetcher accepted")
	}
	if _, err := NewExecutor(ledger, ledger, ledger, nil, nil); err == nil {
		t.Error("nil builder accepted")
	}
	if _, err := NewExecutor(ledger, ledger, ledger, builder, nil); err != nil {
		t.Errorf("valid collaborators rejected: %v", err)
	}
}

func TestMemberSubmitsAtDueSlot(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(1)
	ledger.addAutomation(ref)

	report := round(t, e, 100, ref)

	if len(report.Submitted) != 1 || report.Submitted[0].Ref != ref {
		t.Fatalf("submitted = %+v, want [%s]", report.Submitted, ref.Short())
	}
	wantNoMetadata(t, e, ref)
	rec, ok := e.Record(ref)
	if !ok {
		t.Fatal("no transaction record after successful batch")
	}
	if rec.SlotSent != 100 {
		t.Errorf("record slot = %d, want 100", rec.SlotSent)
	}
	if rec.Signature != report.Submitted[0].Signature {
		t.Error("record signature does not match submitted signature")
	}
	if len(ledger.batches) != 1 || len(ledger.batches[0]) != 1 {
		t.Errorf("batches = %d, want one batch of one tx", len(ledger.batches))
	}
}

func TestNonMemberWaitsOutTimeoutWindow(t *testing.T) {
	// Pool is non-empty and this worker is not in it: the automation due
	// at 100 may only be attempted once slot 108 has fully elapsed.
	ledger := newFakeLedger(WorkerAddress(99))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(2)
	ledger.addAutomation(ref)

	round(t, e, 100, ref)
	if got := builder.buildCount(); got != 0 {
		t.Fatalf("builds at slot 100 = %d, want 0", got)
	}
	round(t, e, 108)
	if got := builder.buildCount(); got != 0 {
		t.Fatalf("builds at slot 108 = %d, want 0 (timeout window not yet elapsed)", got)
	}
	report := round(t, e, 109)
	if got := builder.buildCount(); got != 1 {
		t.Fatalf("builds at slot 109 = %d, want 1", got)
	}
	if len(report.Submitted) != 1 {
		t.Fatalf("submitted = %+v, want one entry", report.Submitted)
	}
}

func TestEmptyPoolSkipsTimeoutGate(t *testing.T) {
	ledger := newFakeLedger()
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(3)
	ledger.addAutomation(ref)

	report := round(t, e, 100, ref)
	if len(report.Submitted) != 1 {
		t.Fatalf("submitted = %+v, want immediate attempt with empty pool", report.Submitted)
	}
}

func TestBackoffProgression(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(4)
	ledger.addAutomation(ref)
	builder.buildErr = errors.New("simulation failed")

	steps := []struct {
		slot       uint64
		wantBuilds int
		wantFails  uint64
	}{
		{50, 1, 1},  // 2^0-1 = 0 slots of backoff
		{51, 2, 2},  // 2^1-1 = 1
		{52, 2, 2},  // still inside 2^2-1 = 3
		{53, 3, 3},  // 3 elapsed
		{56, 3, 3},  // still inside 2^3-1 = 7
		{57, 4, 4},  // 7 elapsed
	}
	for i, step := range steps {
		var triggered []Address
		if i == 0 {
			triggered = []Address{ref}
		}
		round(t, e, step.slot, triggered...)
		if got := builder.buildCount(); got != step.wantBuilds {
			t.Fatalf("slot %d: builds = %d, want %d", step.slot, got, step.wantBuilds)
		}
		wantMetadata(t, e, ref, 50, step.wantFails)
	}

	// 2^4-1 = 15: not due at 64, due at 65 where the build now succeeds.
	builder.buildErr = nil
	round(t, e, 64)
	if got := builder.buildCount(); got != 4 {
		t.Fatalf("slot 64: builds = %d, want 4", got)
	}
	report := round(t, e, 65)
	if len(report.Submitted) != 1 {
		t.Fatalf("slot 65: submitted = %+v, want recovery submission", report.Submitted)
	}
}

func TestAutomationDroppedAfterThreshold(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(5)
	ledger.addAutomation(ref)
	builder.buildErr = errors.New("simulation failed")

	// Walk the backoff ladder: failures 1..6 accrue at slots 50, 51, 53,
	// 57, 65 and 81.
	round(t, e, 50, ref)
	for _, slot := range []uint64{51, 53, 57, 65, 81} {
		round(t, e, slot)
	}
	meta, ok := e.Metadata(ref)
	if !ok || meta.SimulationFailures != MaxSimulationFailures+1 {
		t.Fatalf("metadata = %+v ok=%v, want failures=%d", meta, ok, MaxSimulationFailures+1)
	}
	builds := builder.buildCount()

	report := round(t, e, 82)
	if len(report.Dropped) != 1 || report.Dropped[0] != ref {
		t.Fatalf("dropped = %+v, want [%s]", report.Dropped, ref.Short())
	}
	wantNoMetadata(t, e, ref)
	if got := e.Stats().Dropped; got != 1 {
		t.Errorf("dropped counter = %d, want 1", got)
	}
	if got := builder.buildCount(); got != builds {
		t.Errorf("builds after drop = %d, want %d (no further attempts)", got, builds)
	}

	// Re-triggering starts the automation over from a clean slate.
	builder.buildErr = nil
	report = round(t, e, 90, ref)
	if len(report.Submitted) != 1 {
		t.Fatalf("submitted after re-trigger = %+v, want one", report.Submitted)
	}
	if got := e.Stats().Dropped; got != 1 {
		t.Errorf("dropped counter after re-trigger = %d, want 1", got)
	}
	wantNoMetadata(t, e, ref)
}

func TestFetchFailureChargesSimulationFailure(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(6)
	ledger.fetchErr[ref] = errors.New("rpc timeout")

	round(t, e, 100, ref)
	wantMetadata(t, e, ref, 100, 1)
	if got := builder.buildCount(); got != 0 {
		t.Errorf("builds = %d, want 0 when the fetch already failed", got)
	}
}

func TestRetryReclassification(t *testing.T) {
	tests := []struct {
		name       string
		result     statusResult
		wantRecord bool
		wantMeta   bool
	}{
		{
			name:       "landed success drops the record",
			result:     statusResult{status: &SignatureStatus{Slot: 41}},
			wantRecord: false,
			wantMeta:   false,
		},
		{
			name:       "landed failure requeues",
			result:     statusResult{status: &SignatureStatus{Slot: 41, Err: errors.New("program error")}},
			wantRecord: false,
			wantMeta:   true,
		},
		{
			name:       "never landed requeues",
			result:     statusResult{},
			wantRecord: false,
			wantMeta:   true,
		},
		{
			name:       "query error leaves the record outstanding",
			result:     statusResult{err: errors.New("rpc unavailable")},
			wantRecord: true,
			wantMeta:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keep this worker outside a non-empty pool so the
			// timeout gate stops the requeued automation from being
			// rebuilt in the same round; the reclassification result
			// stays observable.
			ledger := newFakeLedger(WorkerAddress(99))
			builder := newFakeBuilder(t)
			e := newTestExecutor(t, ledger, builder, nil)
			ref := addrOf(7)
			sig := Signature{0xd1}
			e.state.applyBatch([]SubmittedTx{{Ref: ref, Signature: sig}}, 40)
			ledger.statuses[sig] = tt.result

			round(t, e, 52)

			_, gotRecord := e.Record(ref)
			if gotRecord != tt.wantRecord {
				t.Errorf("record present = %v, want %v", gotRecord, tt.wantRecord)
			}
			meta, gotMeta := e.Metadata(ref)
			if gotMeta != tt.wantMeta {
				t.Fatalf("metadata present = %v, want %v", gotMeta, tt.wantMeta)
			}
			if tt.wantMeta && (meta.DueSlot != 52 || meta.SimulationFailures != 0) {
				t.Errorf("requeued metadata = %+v, want due=52 failures=0", meta)
			}
		})
	}
}

func TestConfirmationWindowGatesStatusChecks(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	sig := Signature{0xc2}
	e.state.applyBatch([]SubmittedTx{{Ref: addrOf(8), Signature: sig}}, 40)
	ledger.statuses[sig] = statusResult{status: &SignatureStatus{Slot: 41}}

	round(t, e, 50)
	if ledger.queries != 0 {
		t.Fatalf("queries at slot 50 = %d, want 0 (window not elapsed)", ledger.queries)
	}
	round(t, e, 51)
	if ledger.queries != 1 {
		t.Fatalf("queries at slot 51 = %d, want 1", ledger.queries)
	}
}

func TestDuplicateTransactionNotResubmitted(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(9)
	ledger.addAutomation(ref)

	first := round(t, e, 100, ref)
	if len(first.Submitted) != 1 {
		t.Fatalf("first round submitted = %+v", first.Submitted)
	}
	sig := first.Submitted[0].Signature

	// Re-trigger while the identical transaction is still in flight. The
	// blockhash has not moved, so the rebuild is bit-identical and must
	// be rejected by the dedupe check.
	second := round(t, e, 105, ref)
	if len(second.Submitted) != 0 {
		t.Fatalf("second round submitted = %+v, want none", second.Submitted)
	}
	rec, ok := e.Record(ref)
	if !ok || rec.Signature != sig || rec.SlotSent != 100 {
		t.Fatalf("record = %+v ok=%v, want original {100, %s}", rec, ok, sig)
	}
	if len(ledger.batches) != 1 {
		t.Errorf("batches = %d, want 1 (duplicate not resubmitted)", len(ledger.batches))
	}

	// A new blockhash yields a distinct transaction, which replaces the
	// stale record.
	builder.blockhash = Hash{2}
	third := round(t, e, 110, ref)
	if len(third.Submitted) != 1 {
		t.Fatalf("third round submitted = %+v, want one", third.Submitted)
	}
	rec, _ = e.Record(ref)
	if rec.SlotSent != 110 || rec.Signature == sig {
		t.Errorf("record = %+v, want fresh submission at 110", rec)
	}
}

func TestBatchFailureLeavesStateUntouched(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	refs := []Address{addrOf(10), addrOf(11), addrOf(12)}
	for _, ref := range refs {
		ledger.addAutomation(ref)
	}
	ledger.submitErr = errors.New("transport down")

	_, err := e.ExecuteRound(context.Background(), refs, 100)
	if err == nil {
		t.Fatal("ExecuteRound succeeded although the batch submit failed")
	}
	for _, ref := range refs {
		wantMetadata(t, e, ref, 100, 0)
		wantNoRecord(t, e, ref)
	}

	// Next round retries all three at their original backoff position.
	ledger.submitErr = nil
	report := round(t, e, 101)
	if len(report.Submitted) != len(refs) {
		t.Fatalf("submitted = %d, want %d", len(report.Submitted), len(refs))
	}
}

func TestPoolFetchFailureSkipsSelection(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(13)
	ledger.addAutomation(ref)
	ledger.poolErr = errors.New("rpc timeout")

	report, err := e.ExecuteRound(context.Background(), []Address{ref}, 100)
	if err == nil {
		t.Fatal("ExecuteRound succeeded although the pool fetch failed")
	}
	if report == nil {
		t.Fatal("no report returned for a failed round")
	}
	// Ingest still happened; no build was attempted.
	wantMetadata(t, e, ref, 100, 0)
	if got := builder.buildCount(); got != 0 {
		t.Errorf("builds = %d, want 0", got)
	}

	ledger.poolErr = nil
	second := round(t, e, 101)
	if len(second.Submitted) != 1 {
		t.Fatalf("submitted after recovery = %+v, want one", second.Submitted)
	}
}

func TestRotationSubmittedWhenNotMember(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(99))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)

	report := round(t, e, 100)
	if report.Rotation == nil {
		t.Fatal("no rotation submitted although the worker is outside the pool")
	}
	if report.PoolMember {
		t.Error("report claims pool membership")
	}
	if len(ledger.batches) != 1 || len(ledger.batches[0]) != 1 {
		t.Fatalf("batches = %+v, want one single-tx rotation batch", len(ledger.batches))
	}
}

func TestRotationFailureDoesNotAbortRound(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(99))
	builder := newFakeBuilder(t)
	log := logger.NewMockLogger()
	e, err := NewExecutor(ledger, ledger, ledger, builder, &ExecutorOpts{
		WorkerID: testWorkerID,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	ledger.registry.Locked = true
	ref := addrOf(14)
	ledger.addAutomation(ref)

	// Trigger far enough back that the timeout window has elapsed and the
	// non-member may still submit work this round.
	round(t, e, 100, ref)
	report := round(t, e, 109)
	if report.Rotation != nil {
		t.Error("rotation reported despite locked registry")
	}
	if len(report.Submitted) != 1 {
		t.Fatalf("submitted = %+v, want the timed-out automation", report.Submitted)
	}
	if len(log.WarningCalls) == 0 {
		t.Error("rotation failure was not logged")
	}
}

func TestMemberNeverRotates(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)

	report := round(t, e, 100)
	if report.Rotation != nil {
		t.Error("pool member submitted a rotation")
	}
	if !report.PoolMember {
		t.Error("report does not claim pool membership")
	}
}

func TestSubmitHookVeto(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	vetoed := addrOf(15)
	kept := addrOf(16)
	hook := func(ref Address, _ *Transaction, _ uint64) bool {
		return ref != vetoed
	}
	e := newTestExecutor(t, ledger, builder, hook)
	ledger.addAutomation(vetoed)
	ledger.addAutomation(kept)

	report := round(t, e, 100, vetoed, kept)
	if len(report.Submitted) != 1 || report.Submitted[0].Ref != kept {
		t.Fatalf("submitted = %+v, want only %s", report.Submitted, kept.Short())
	}
	if len(report.Vetoed) != 1 || report.Vetoed[0] != vetoed {
		t.Fatalf("vetoed = %+v, want [%s]", report.Vetoed, vetoed.Short())
	}
	// A veto is not a failure: the automation stays due with a clean count.
	wantMetadata(t, e, vetoed, 100, 0)
	wantNoRecord(t, e, vetoed)
}

func TestMetadataAndRecordAreMutuallyExclusive(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(17)
	ledger.addAutomation(ref)

	exclusive := func(stage string) {
		t.Helper()
		_, hasMeta := e.Metadata(ref)
		_, hasRec := e.Record(ref)
		if hasMeta && hasRec {
			t.Fatalf("%s: both metadata and record present", stage)
		}
	}

	report := round(t, e, 100, ref)
	exclusive("after submission")
	sig := report.Submitted[0].Signature

	// Landed failure: record goes, metadata comes back.
	ledger.statuses[sig] = statusResult{status: &SignatureStatus{Slot: 101, Err: errors.New("program error")}}
	round(t, e, 111)
	exclusive("after requeue")
	wantMetadata(t, e, ref, 111, 0)

	// Resubmitted, then confirmed: everything drains.
	builder.blockhash = Hash{3}
	report = round(t, e, 112)
	exclusive("after resubmission")
	ledger.statuses[report.Submitted[0].Signature] = statusResult{status: &SignatureStatus{Slot: 113}}
	round(t, e, 123)
	wantNoMetadata(t, e, ref)
	wantNoRecord(t, e, ref)
	if got := e.Stats().Dropped; got != 0 {
		t.Errorf("dropped = %d, want 0", got)
	}
}

func TestFlushDropsBookkeeping(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	ref := addrOf(18)
	ledger.addAutomation(ref)

	round(t, e, 100, ref)
	if _, ok := e.Record(ref); !ok {
		t.Fatal("no record after submission")
	}
	e.Flush(ref)
	wantNoMetadata(t, e, ref)
	wantNoRecord(t, e, ref)
}

func TestStatsCounts(t *testing.T) {
	ledger := newFakeLedger(WorkerAddress(testWorkerID))
	builder := newFakeBuilder(t)
	e := newTestExecutor(t, ledger, builder, nil)
	a, b := addrOf(19), addrOf(20)
	ledger.addAutomation(a)
	ledger.fetchErr[b] = errors.New("rpc timeout")

	round(t, e, 100, a, b)
	stats := e.Stats()
	if stats.Executable != 1 {
		t.Errorf("executable = %d, want 1 (b still pending)", stats.Executable)
	}
	if stats.Outstanding != 1 {
		t.Errorf("outstanding = %d, want 1 (a submitted)", stats.Outstanding)
	}
	if stats.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", stats.Dropped)
	}
}
