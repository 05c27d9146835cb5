package cranklib

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/crankd/crankd/pkg/logger"
)

// Executor is the execution scheduler. It owns the executable-automation and
// in-flight transaction bookkeeping and drives one scheduling round per
// ledger slot: ingest newly triggered automations, drop terminally failing
// ones, reconcile outstanding submissions, resolve pool membership, rotate
// into the pool when absent, then select, build, dedupe and batch-submit.
//
// Rounds must not overlap. ExecuteRound is safe to call from a single driver
// goroutine while other goroutines read Stats, Metadata or Record.
type Executor struct {
	fetcher   AccountFetcher
	statuses  StatusChecker
	submitter BatchSubmitter
	builder   Builder

	workerID uint64
	poolID   uint64
	worker   Address
	hook     SubmitHook
	log      logger.Logger

	state   *execState
	dropped atomic.Uint64
}

// ExecutorOpts carries the optional knobs for NewExecutor.
type ExecutorOpts struct {
	// WorkerID is this executor's registered worker id.
	WorkerID uint64
	// PoolID selects the worker pool to coordinate with. Defaults to 0,
	// the network's execution pool.
	PoolID uint64
	// Hook, when non-nil, reviews each built transaction before the batch
	// phase.
	Hook SubmitHook
	// Logger defaults to a NopLogger.
	Logger logger.Logger
}

// NewExecutor wires an executor to its ledger collaborators.
func NewExecutor(fetcher AccountFetcher, statuses StatusChecker, submitter BatchSubmitter, builder Builder, opts *ExecutorOpts) (*Executor, error) {
	if fetcher == nil || statuses == nil || submitter == nil || builder == nil {
		return nil, errors.New("executor requires fetcher, status checker, submitter and builder")
	}
	if opts == nil {
		opts = &ExecutorOpts{}
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Executor{
		fetcher:   fetcher,
		statuses:  statuses,
		submitter: submitter,
		builder:   builder,
		workerID:  opts.WorkerID,
		poolID:    opts.PoolID,
		worker:    WorkerAddress(opts.WorkerID),
		hook:      opts.Hook,
		log:       l,
		state:     newExecState(),
	}, nil
}

// ExecuteRound runs one scheduling round at slot. triggered lists the
// automations newly observed as due this round. The returned report records
// what the round did even when it ends in an error; later steps simply did
// not run.
func (e *Executor) ExecuteRound(ctx context.Context, triggered []Address, slot uint64) (*RoundReport, error) {
	report := &RoundReport{Slot: slot, Triggered: len(triggered)}

	// Newly triggered automations become executable now, with a clean
	// failure count even if a prior entry existed.
	e.state.ingest(triggered, slot)

	// Abandon automations that crossed the failure threshold.
	report.Dropped = e.state.prune(MaxSimulationFailures)
	for _, ref := range report.Dropped {
		e.dropped.Add(1)
		e.log.Warning("dropping automation %s after %d simulation failures", ref.Short(), MaxSimulationFailures+1)
	}

	// Reconcile outstanding submissions. Best effort: status query errors
	// leave their records untouched for the next round.
	report.Confirmed, report.Retried = e.processRetries(ctx, slot)

	pos, err := e.poolPosition(ctx)
	if err != nil {
		// Without a pool view there is no way to gate selection, so
		// rotation and submission sit this round out.
		return report, fmt.Errorf("resolving pool position: %w", err)
	}
	report.PoolMember = pos.Member()
	report.PoolSize = len(pos.Workers)

	if !pos.Member() {
		sig, err := e.rotatePool(ctx)
		if err != nil {
			e.log.Warning("pool rotation: %v", err)
		} else if sig != nil {
			report.Rotation = sig
		}
	}

	if err := e.executeAutomations(ctx, slot, pos, report); err != nil {
		return report, err
	}
	return report, nil
}

// poolPosition fetches the pool account and locates this worker in it.
func (e *Executor) poolPosition(ctx context.Context) (PoolPosition, error) {
	pool, err := e.fetcher.FetchPool(ctx, PoolAddress(e.poolID))
	if err != nil {
		return PoolPosition{}, fmt.Errorf("fetching pool %d: %w", e.poolID, err)
	}
	return ResolvePoolPosition(pool, e.worker), nil
}

// rotatePool builds and submits one transaction admitting this worker into
// the pool. Every failure is surfaced to the caller and swallowed there;
// rotation retries each round until the worker is admitted.
func (e *Executor) rotatePool(ctx context.Context) (*Signature, error) {
	registry, err := e.fetcher.FetchRegistry(ctx, RegistryAddress())
	if err != nil {
		return nil, fmt.Errorf("fetching registry: %w", err)
	}
	snapshotAddr := SnapshotAddress(registry.CurrentEpoch)
	snapshot, err := e.fetcher.FetchSnapshot(ctx, snapshotAddr)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %d: %w", registry.CurrentEpoch, err)
	}
	frame, err := e.fetcher.FetchSnapshotFrame(ctx, SnapshotFrameAddress(snapshotAddr, e.workerID))
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot frame: %w", err)
	}
	tx, err := e.builder.BuildRotation(ctx, RotationState{
		Registry:      registry,
		Snapshot:      snapshot,
		SnapshotFrame: frame,
	})
	if err != nil {
		return nil, fmt.Errorf("building rotation tx: %w", err)
	}
	if err := e.submitter.SubmitBatch(ctx, [][]byte{tx.Serialize()}); err != nil {
		return nil, fmt.Errorf("submitting rotation tx: %w", err)
	}
	sig := tx.Signature()
	e.log.Info("submitted pool rotation for worker %d: %s", e.workerID, sig)
	return &sig, nil
}

// Stats snapshots the scheduler's bookkeeping counters.
func (e *Executor) Stats() ExecutorStats {
	executable, inflight := e.state.counts()
	return ExecutorStats{
		Dropped:     e.dropped.Load(),
		Executable:  executable,
		Outstanding: inflight,
	}
}

// Metadata returns the tracked metadata for ref, if any.
func (e *Executor) Metadata(ref Address) (ExecutableMetadata, bool) {
	return e.state.metadata(ref)
}

// Record returns the in-flight transaction record for ref, if any.
func (e *Executor) Record(ref Address) (TransactionRecord, bool) {
	return e.state.record(ref)
}

// Executable copies the executable-automation map for introspection.
func (e *Executor) Executable() map[Address]ExecutableMetadata {
	return e.state.snapshotExecutable()
}

// Outstanding copies the in-flight transaction map for introspection.
func (e *Executor) Outstanding() map[Address]TransactionRecord {
	return e.state.snapshotInflight()
}

// Flush removes any bookkeeping for ref so it is neither attempted nor
// reconciled again until re-triggered.
func (e *Executor) Flush(ref Address) {
	e.state.flush(ref)
}
