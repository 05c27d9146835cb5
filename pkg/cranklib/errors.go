package cranklib

import "errors"

var (
	// ErrAccountNotFound is returned by AccountFetcher implementations
	// when the requested address holds no account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoInstruction is returned by Builder implementations when the
	// automation has no actionable next instruction this round.
	ErrNoInstruction = errors.New("no executable instruction")

	// ErrAutomationPaused is returned by Builder implementations for
	// automations whose authority has paused execution.
	ErrAutomationPaused = errors.New("automation is paused")

	// ErrShortAccountData is returned when ledger account bytes are too
	// short to decode into the requested account type.
	ErrShortAccountData = errors.New("account data too short")
)
