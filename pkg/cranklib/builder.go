package cranklib

import (
	"context"
	"errors"
	"fmt"
)

// BlockhashSource provides a recent blockhash to anchor new transactions to
// chain history.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (Hash, error)
}

// TxBuilder is the production Builder: it turns automation state into signed
// kickoff, exec and pool-rotation transactions paid by this worker's
// signatory keypair.
type TxBuilder struct {
	signer    *Keypair
	workerID  uint64
	poolID    uint64
	blockhash BlockhashSource
}

// NewTxBuilder returns a builder signing with signer on behalf of the given
// registered worker.
func NewTxBuilder(signer *Keypair, workerID, poolID uint64, blockhash BlockhashSource) (*TxBuilder, error) {
	if signer == nil {
		return nil, errors.New("tx builder requires a signing keypair")
	}
	if blockhash == nil {
		return nil, errors.New("tx builder requires a blockhash source")
	}
	return &TxBuilder{
		signer:    signer,
		workerID:  workerID,
		poolID:    poolID,
		blockhash: blockhash,
	}, nil
}

// Build produces the transaction executing automation's next step: a kickoff
// for automations that never ran, otherwise an exec of the pending next
// instruction.
func (b *TxBuilder) Build(ctx context.Context, ref Address, automation *Automation, slot uint64) (*Transaction, error) {
	if automation == nil {
		return nil, errors.New("nil automation")
	}
	if automation.Paused {
		return nil, ErrAutomationPaused
	}
	var ix Instruction
	switch {
	case !automation.Started():
		ix = b.kickoffInstruction(ref, automation)
	case automation.NextInstruction != nil:
		ix = b.execInstruction(ref, automation.NextInstruction)
	default:
		return nil, ErrNoInstruction
	}
	return b.signedTx(ctx, ix)
}

// BuildRotation produces the transaction admitting this worker into the
// active pool for the snapshot's epoch.
func (b *TxBuilder) BuildRotation(ctx context.Context, state RotationState) (*Transaction, error) {
	if state.Registry == nil || state.Snapshot == nil || state.SnapshotFrame == nil {
		return nil, errors.New("rotation requires registry, snapshot and frame state")
	}
	if state.Registry.Locked {
		return nil, fmt.Errorf("registry is locked for epoch %d", state.Registry.CurrentEpoch)
	}
	worker := WorkerAddress(b.workerID)
	ix := Instruction{
		ProgramID: NetworkProgramID,
		Accounts: []AccountMeta{
			WritableAccount(PoolAddress(b.poolID), false),
			ReadonlyAccount(RegistryAddress(), false),
			WritableAccount(b.signer.Address(), true),
			ReadonlyAccount(SnapshotAddress(state.Registry.CurrentEpoch), false),
			ReadonlyAccount(SnapshotFrameAddress(SnapshotAddress(state.Registry.CurrentEpoch), b.workerID), false),
			ReadonlyAccount(worker, false),
		},
		Data: instructionSighash("pool_rotate"),
	}
	return b.signedTx(ctx, ix)
}

// kickoffInstruction starts an automation for the first time. Account
// triggers also pass the watched account so the program can record the
// observed data hash.
func (b *TxBuilder) kickoffInstruction(ref Address, automation *Automation) Instruction {
	worker := WorkerAddress(b.workerID)
	accounts := []AccountMeta{
		WritableAccount(FeeAddress(worker), false),
		ReadonlyAccount(PoolAddress(b.poolID), false),
		WritableAccount(b.signer.Address(), true),
		WritableAccount(ref, false),
		ReadonlyAccount(worker, false),
	}
	if automation.Trigger.Kind == TriggerAccount {
		accounts = append(accounts, ReadonlyAccount(automation.Trigger.Address, false))
	}
	return Instruction{
		ProgramID: AutomationProgramID,
		Accounts:  accounts,
		Data:      instructionSighash("automation_kickoff"),
	}
}

// execInstruction runs an automation's pending next instruction. The inner
// instruction's accounts ride along so the program can invoke it, with the
// payer placeholder remapped to this worker's signatory.
func (b *TxBuilder) execInstruction(ref Address, next *Instruction) Instruction {
	worker := WorkerAddress(b.workerID)
	accounts := []AccountMeta{
		WritableAccount(FeeAddress(worker), false),
		ReadonlyAccount(PoolAddress(b.poolID), false),
		WritableAccount(b.signer.Address(), true),
		WritableAccount(ref, false),
		ReadonlyAccount(worker, false),
		ReadonlyAccount(next.ProgramID, false),
	}
	for _, acc := range next.Accounts {
		if acc.Address == PayerPlaceholder {
			acc.Address = b.signer.Address()
		}
		// Inner signers are signed for by the program, not the worker.
		acc.IsSigner = false
		accounts = append(accounts, acc)
	}
	return Instruction{
		ProgramID: AutomationProgramID,
		Accounts:  accounts,
		Data:      instructionSighash("automation_exec"),
	}
}

func (b *TxBuilder) signedTx(ctx context.Context, ix Instruction) (*Transaction, error) {
	blockhash, err := b.blockhash.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching blockhash: %w", err)
	}
	tx := NewTransaction(b.signer.Address(), blockhash, ix)
	if err := tx.Sign(b.signer); err != nil {
		return nil, err
	}
	return tx, nil
}

var _ Builder = (*TxBuilder)(nil)
