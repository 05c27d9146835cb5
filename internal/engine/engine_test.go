package engine

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/journal"
	"github.com/crankd/crankd/internal/observer"
	"github.com/crankd/crankd/internal/server"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/ledgerrpc"
	"github.com/crankd/crankd/pkg/logger"
)

const testWorkerID = 4

func addrOf(b byte) cranklib.Address {
	var a cranklib.Address
	a[0] = b
	return a
}

// testLedger backs both the engine and the executor with in-memory state.
type testLedger struct {
	mu          sync.Mutex
	automations map[cranklib.Address]*cranklib.Automation
	extra       []ledgerrpc.ProgramAccount
	pool        *cranklib.Pool
	blockTime   time.Time
	batches     [][][]byte
}

func newTestLedger() *testLedger {
	worker := cranklib.WorkerAddress(testWorkerID)
	return &testLedger{
		automations: make(map[cranklib.Address]*cranklib.Automation),
		pool:        &cranklib.Pool{ID: 0, Size: 2, Workers: []cranklib.Address{worker}},
		blockTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (l *testLedger) addAutomation(ref cranklib.Address) *cranklib.Automation {
	l.mu.Lock()
	defer l.mu.Unlock()
	aut := &cranklib.Automation{
		Authority: addrOf(0xaa),
		ID:        ref.Short(),
		Trigger:   cranklib.ImmediateTrigger(),
	}
	l.automations[ref] = aut
	return aut
}

func (l *testLedger) ProgramAccounts(_ context.Context, _ cranklib.Address) ([]ledgerrpc.ProgramAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	accounts := make([]ledgerrpc.ProgramAccount, 0, len(l.automations)+len(l.extra))
	for ref, aut := range l.automations {
		accounts = append(accounts, ledgerrpc.ProgramAccount{Address: ref, Data: aut.Encode()})
	}
	accounts = append(accounts, l.extra...)
	return accounts, nil
}

func (l *testLedger) BlockTime(_ context.Context, _ uint64) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockTime, nil
}

func (l *testLedger) FetchAutomation(_ context.Context, addr cranklib.Address) (*cranklib.Automation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	aut, ok := l.automations[addr]
	if !ok {
		return nil, cranklib.ErrAccountNotFound
	}
	return aut, nil
}

func (l *testLedger) FetchPool(_ context.Context, _ cranklib.Address) (*cranklib.Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool, nil
}

func (l *testLedger) FetchRegistry(_ context.Context, _ cranklib.Address) (*cranklib.Registry, error) {
	return &cranklib.Registry{CurrentEpoch: 1, TotalWorkers: 2}, nil
}

func (l *testLedger) FetchSnapshot(_ context.Context, _ cranklib.Address) (*cranklib.Snapshot, error) {
	return &cranklib.Snapshot{ID: 1, TotalFrames: 2, TotalStake: 100}, nil
}

func (l *testLedger) FetchSnapshotFrame(_ context.Context, _ cranklib.Address) (*cranklib.SnapshotFrame, error) {
	return &cranklib.SnapshotFrame{ID: testWorkerID, StakeAmount: 10, Worker: cranklib.WorkerAddress(testWorkerID)}, nil
}

func (l *testLedger) SignatureStatus(_ context.Context, _ cranklib.Signature) (*cranklib.SignatureStatus, error) {
	return nil, nil
}

func (l *testLedger) SubmitBatch(_ context.Context, txs [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, txs)
	return nil
}

func (l *testLedger) AccountData(_ context.Context, addr cranklib.Address) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	aut, ok := l.automations[addr]
	if !ok {
		return nil, cranklib.ErrAccountNotFound
	}
	return aut.Encode(), nil
}

type testBuilder struct {
	kp *cranklib.Keypair
}

func newTestBuilder(t *testing.T) *testBuilder {
	t.Helper()
	kp, err := cranklib.KeypairFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	return &testBuilder{kp: kp}
}

func (b *testBuilder) Build(_ context.Context, ref cranklib.Address, _ *cranklib.Automation, _ uint64) (*cranklib.Transaction, error) {
	tx := cranklib.NewTransaction(b.kp.Address(), cranklib.Hash{1}, cranklib.Instruction{
		ProgramID: cranklib.AutomationProgramID,
		Data:      append([]byte("exec"), ref[:]...),
	})
	if err := tx.Sign(b.kp); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *testBuilder) BuildRotation(_ context.Context, _ cranklib.RotationState) (*cranklib.Transaction, error) {
	tx := cranklib.NewTransaction(b.kp.Address(), cranklib.Hash{1}, cranklib.Instruction{
		ProgramID: cranklib.NetworkProgramID,
		Data:      []byte("rotate"),
	})
	if err := tx.Sign(b.kp); err != nil {
		return nil, err
	}
	return tx, nil
}

func newTestEngine(t *testing.T, ledger *testLedger) (*Engine, *observer.Observer, *journal.Journal) {
	t.Helper()
	obs := observer.New(ledger, logger.NewNopLogger())
	jrnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), logger.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { jrnl.Close() })

	exec, err := cranklib.NewExecutor(ledger, ledger, ledger, newTestBuilder(t), &cranklib.ExecutorOpts{
		WorkerID: testWorkerID,
		Logger:   logger.NewNopLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	e, err := New(&Opts{
		Executor:  exec,
		Observer:  obs,
		Journal:   jrnl,
		Pool:      server.NewPool(logger.NewNopLogger()),
		Ledger:    ledger,
		ProgramID: cranklib.AutomationProgramID,
		WorkerID:  testWorkerID,
		Signatory: cranklib.WorkerAddress(testWorkerID),
		Logger:    logger.NewNopLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return e, obs, jrnl
}

func TestSeedTracksAutomations(t *testing.T) {
	ledger := newTestLedger()
	ledger.addAutomation(addrOf(1))
	ledger.addAutomation(addrOf(2))
	ledger.extra = append(ledger.extra, ledgerrpc.ProgramAccount{
		Address: addrOf(9),
		Data:    []byte{0x01},
	})

	e, obs, _ := newTestEngine(t, ledger)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n := obs.TrackedCount(); n != 2 {
		t.Fatalf("tracked %d automations, want 2", n)
	}
}

func TestRoundSubmitsTriggered(t *testing.T) {
	ledger := newTestLedger()
	ref := addrOf(1)
	ledger.addAutomation(ref)

	e, _, jrnl := newTestEngine(t, ledger)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.runRound(context.Background(), 100)

	ledger.mu.Lock()
	batches := len(ledger.batches)
	ledger.mu.Unlock()
	if batches != 1 {
		t.Fatalf("submitted %d batches, want 1", batches)
	}

	entries, err := jrnl.Query(common.HistoryParams{Event: "submitted"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Ref != ref.String() {
		t.Fatalf("journal entries %+v", entries)
	}

	st := e.Status()
	if st.Slot != 100 {
		t.Fatalf("status slot = %d", st.Slot)
	}
	if !st.PoolMember {
		t.Fatal("worker in pool should report membership")
	}
	if st.Outstanding != 1 {
		t.Fatalf("outstanding = %d, want 1", st.Outstanding)
	}
}

func TestRoundBroadcastsUpdate(t *testing.T) {
	ledger := newTestLedger()
	ledger.addAutomation(addrOf(1))

	e, _, _ := newTestEngine(t, ledger)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	e.pool.Subscribe(common.UPDATE_ROUND, a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4)
		b.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := b.Read(buf); err != nil {
			t.Errorf("reading broadcast frame: %v", err)
		}
		// Unblock the broadcaster's payload write on the synchronous pipe.
		b.Close()
	}()

	e.runRound(context.Background(), 50)
	<-done
}

func TestRefreshForgetsMissing(t *testing.T) {
	ledger := newTestLedger()
	ref := addrOf(1)
	ledger.addAutomation(ref)

	e, obs, _ := newTestEngine(t, ledger)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Account vanished between submission and confirmation.
	ledger.mu.Lock()
	delete(ledger.automations, ref)
	ledger.mu.Unlock()

	e.refresh(context.Background(), &cranklib.RoundReport{Confirmed: []cranklib.Address{ref}})
	if obs.TrackedCount() != 0 {
		t.Fatal("missing automation still tracked after refresh")
	}
}

func TestRefreshDropsAbandoned(t *testing.T) {
	ledger := newTestLedger()
	ref := addrOf(2)
	ledger.addAutomation(ref)

	e, obs, _ := newTestEngine(t, ledger)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.refresh(context.Background(), &cranklib.RoundReport{Dropped: []cranklib.Address{ref}})
	if obs.TrackedCount() != 0 {
		t.Fatal("dropped automation still tracked")
	}
}

func TestDrainSlotsCoalesces(t *testing.T) {
	slots := make(chan uint64, 8)
	slots <- 11
	slots <- 13
	slots <- 12
	if got := drainSlots(slots, 10); got != 13 {
		t.Fatalf("drainSlots = %d, want 13", got)
	}
	if len(slots) != 0 {
		t.Fatal("drainSlots left slots buffered")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ledger := newTestLedger()
	e, _, _ := newTestEngine(t, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	slots := make(chan uint64)
	done := make(chan struct{})
	go func() {
		e.Run(ctx, slots)
		close(done)
	}()

	slots <- 5
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	ledger := newTestLedger()
	e, _, _ := newTestEngine(t, ledger)

	slots := make(chan uint64)
	close(slots)
	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), slots)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop when the slot stream closed")
	}
}
