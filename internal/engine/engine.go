// Package engine drives the daemon's scheduling loop: it seeds the observer
// from a program account scan, runs one executor round per observed slot,
// journals the outcome and pushes it to watch subscribers.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/journal"
	"github.com/crankd/crankd/internal/observer"
	"github.com/crankd/crankd/internal/server"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/ledgerrpc"
	"github.com/crankd/crankd/pkg/logger"
)

// Ledger is the slice of the RPC client the engine consumes directly. The
// executor talks to the ledger through its own capability interfaces.
type Ledger interface {
	ProgramAccounts(ctx context.Context, programID cranklib.Address) ([]ledgerrpc.ProgramAccount, error)
	BlockTime(ctx context.Context, slot uint64) (time.Time, error)
	FetchAutomation(ctx context.Context, addr cranklib.Address) (*cranklib.Automation, error)
}

// Opts carries the engine's collaborators.
type Opts struct {
	Executor  *cranklib.Executor
	Observer  *observer.Observer
	Journal   *journal.Journal
	Pool      *server.Pool
	Ledger    Ledger
	ProgramID cranklib.Address
	WorkerID  uint64
	Signatory cranklib.Address
	Logger    logger.Logger
}

// Engine owns the per-slot round loop. Rounds never overlap: slots arriving
// while a round is in flight are coalesced and only the newest runs next.
type Engine struct {
	log       logger.Logger
	exec      *cranklib.Executor
	obs       *observer.Observer
	jrnl      *journal.Journal
	pool      *server.Pool
	ledger    Ledger
	programID cranklib.Address
	workerID  uint64
	signatory cranklib.Address
	start     time.Time

	mu         sync.RWMutex
	lastSlot   uint64
	lastReport *cranklib.RoundReport
}

func New(opts *Opts) (*Engine, error) {
	if opts == nil || opts.Executor == nil || opts.Observer == nil || opts.Ledger == nil {
		return nil, errors.New("engine requires executor, observer and ledger")
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Engine{
		log:       l,
		exec:      opts.Executor,
		obs:       opts.Observer,
		jrnl:      opts.Journal,
		pool:      opts.Pool,
		ledger:    opts.Ledger,
		programID: opts.ProgramID,
		workerID:  opts.WorkerID,
		signatory: opts.Signatory,
		start:     time.Now(),
	}, nil
}

// Seed scans the automation program's accounts and tracks every automation
// found. Accounts that do not decode as automations (pools, registries,
// frames) are skipped.
func (e *Engine) Seed(ctx context.Context) error {
	accounts, err := e.ledger.ProgramAccounts(ctx, e.programID)
	if err != nil {
		return err
	}
	var tracked int
	for _, acc := range accounts {
		aut, err := cranklib.DecodeAutomation(acc.Data)
		if err != nil {
			continue
		}
		if err := e.obs.Track(acc.Address, aut); err != nil {
			e.log.Warning("skipping automation %s: %s", acc.Address.Short(), err.Error())
			continue
		}
		tracked++
	}
	e.log.Info("tracking %d automations from %d program accounts", tracked, len(accounts))
	return nil
}

// Run consumes slots until the context is canceled. The channel is drained
// before each round so a slow round resumes at the newest slot rather than
// replaying the backlog.
func (e *Engine) Run(ctx context.Context, slots <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case slot, ok := <-slots:
			if !ok {
				return
			}
			slot = drainSlots(slots, slot)
			e.runRound(ctx, slot)
		}
	}
}

func drainSlots(slots <-chan uint64, latest uint64) uint64 {
	for {
		select {
		case slot, ok := <-slots:
			if !ok {
				return latest
			}
			if slot > latest {
				latest = slot
			}
		default:
			return latest
		}
	}
}

func (e *Engine) runRound(ctx context.Context, slot uint64) {
	now, err := e.ledger.BlockTime(ctx, slot)
	if err != nil {
		e.log.Warning("block time for slot %d unavailable, using wall clock: %s", slot, err.Error())
		now = time.Now()
	}

	triggered := e.obs.Collect(ctx, now)
	report, err := e.exec.ExecuteRound(ctx, triggered, slot)
	if err != nil {
		e.log.Error("round at slot %d: %s", slot, err.Error())
	}
	if report == nil {
		return
	}

	if e.jrnl != nil {
		e.jrnl.RecordReport(report)
	}
	if e.pool != nil {
		e.pool.Broadcast(common.UPDATE_ROUND, &common.RoundUpdate{
			Report: *report,
			Time:   now,
		})
	}
	e.refresh(ctx, report)

	e.mu.Lock()
	e.lastSlot = slot
	e.lastReport = report
	e.mu.Unlock()
}

// refresh re-reads automations whose state moved on-chain this round.
// Confirmed executions advance NextInstruction and the trigger context, so
// stale copies would evaluate against dead state. Dropped automations stop
// being tracked.
func (e *Engine) refresh(ctx context.Context, report *cranklib.RoundReport) {
	for _, ref := range report.Dropped {
		e.obs.Forget(ref)
	}
	for _, ref := range report.Confirmed {
		aut, err := e.ledger.FetchAutomation(ctx, ref)
		if errors.Is(err, cranklib.ErrAccountNotFound) {
			e.obs.Forget(ref)
			continue
		}
		if err != nil {
			e.log.Warning("refreshing automation %s: %s", ref.Short(), err.Error())
			continue
		}
		if err := e.obs.Track(ref, aut); err != nil {
			e.log.Warning("re-tracking automation %s: %s", ref.Short(), err.Error())
		}
	}
}

// Status snapshots the daemon for the status and watch methods.
func (e *Engine) Status() common.StatusResponse {
	stats := e.exec.Stats()

	e.mu.RLock()
	slot := e.lastSlot
	report := e.lastReport
	e.mu.RUnlock()

	var poolMember bool
	var poolSize int
	if report != nil {
		poolMember = report.PoolMember
		poolSize = report.PoolSize
	}

	paused := e.obs.PausedRefs()
	pausedStr := make([]string, 0, len(paused))
	for _, ref := range paused {
		pausedStr = append(pausedStr, ref.String())
	}

	return common.StatusResponse{
		Slot:        slot,
		WorkerID:    e.workerID,
		Signatory:   e.signatory.String(),
		Dropped:     stats.Dropped,
		Executable:  stats.Executable,
		Outstanding: stats.Outstanding,
		PoolMember:  poolMember,
		PoolSize:    poolSize,
		Paused:      pausedStr,
		Uptime:      time.Since(e.start).Round(time.Second).String(),
	}
}
