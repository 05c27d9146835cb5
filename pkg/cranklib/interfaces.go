package cranklib

import "context"

// The executor consumes the ledger through narrow capability interfaces so
// rounds can be driven against in-memory fakes in tests. Implementations must
// enforce their own call timeouts; the executor never retries inline, it
// simply folds failures into the next round.

// AccountFetcher reads current account state from the ledger.
type AccountFetcher interface {
	// FetchAutomation returns the automation at addr, or ErrAccountNotFound.
	FetchAutomation(ctx context.Context, addr Address) (*Automation, error)
	FetchPool(ctx context.Context, addr Address) (*Pool, error)
	FetchRegistry(ctx context.Context, addr Address) (*Registry, error)
	FetchSnapshot(ctx context.Context, addr Address) (*Snapshot, error)
	FetchSnapshotFrame(ctx context.Context, addr Address) (*SnapshotFrame, error)
}

// SignatureStatus is the landed outcome of a submitted transaction.
type SignatureStatus struct {
	// Slot the transaction landed in.
	Slot uint64
	// Err is non-nil when the transaction landed but failed on-chain.
	Err error
}

// StatusChecker resolves transaction confirmation status.
type StatusChecker interface {
	// SignatureStatus is tri-state: (nil, nil) means the transaction has
	// not landed yet, (status, nil) means it landed with the recorded
	// outcome, and (nil, err) means the query itself failed.
	SignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error)
}

// BatchSubmitter hands serialized transactions to the network. Submission is
// all-or-nothing at the transport level and says nothing about whether the
// individual transactions will land.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, txs [][]byte) error
}

// RotationState is the ledger state a rotation transaction is built from.
type RotationState struct {
	Registry      *Registry
	Snapshot      *Snapshot
	SnapshotFrame *SnapshotFrame
}

// Builder turns automation state into signed transactions.
type Builder interface {
	// Build returns a signed transaction executing the automation's next
	// instruction, ErrNoInstruction when nothing is actionable this
	// round, or ErrAutomationPaused for paused automations.
	Build(ctx context.Context, ref Address, automation *Automation, slot uint64) (*Transaction, error)

	// BuildRotation returns a signed transaction admitting this worker
	// into the active pool.
	BuildRotation(ctx context.Context, state RotationState) (*Transaction, error)
}

// SubmitHook reviews a built transaction just before the batch phase.
// Returning false excludes the transaction from the batch; the automation's
// metadata is left untouched, exactly like a dedupe rejection.
type SubmitHook func(ref Address, tx *Transaction, slot uint64) bool
