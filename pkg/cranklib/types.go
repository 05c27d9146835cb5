package cranklib

import (
	"encoding/json"
	"fmt"
)

// Scheduling policy constants. These are protocol-level tunables; changing
// them changes how aggressively this executor races the rest of the network.
const (
	// ConfirmationWindow is the number of slots a submitted transaction is
	// left alone before its confirmation status is checked.
	ConfirmationWindow uint64 = 10

	// TimeoutWindow is the number of slots pool members get first claim on
	// an automation before outside workers may attempt it.
	TimeoutWindow uint64 = 8

	// MaxSimulationFailures is the number of consecutive build or fetch
	// failures an automation may accumulate before it is dropped.
	MaxSimulationFailures uint64 = 5
)

// Address is a 32-byte ledger account address. Automations, pools, workers
// and every other on-chain record are identified by one.
type Address [32]byte

// ParseAddress decodes a base58-rendered address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58Decode(s)
	if err != nil {
		return a, fmt.Errorf("parsing address %q: %w", s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("parsing address %q: got %d bytes, want %d", s, len(raw), len(a))
	}
	copy(a[:], raw)
	return a, nil
}

func (a Address) String() string {
	return base58Encode(a[:])
}

// Short returns a truncated form suitable for log lines.
func (a Address) Short() string {
	s := a.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Signature is a 64-byte ed25519 transaction signature. The first signature
// of a transaction doubles as its network-wide identifier.
type Signature [64]byte

// ParseSignature decodes a base58-rendered signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := base58Decode(s)
	if err != nil {
		return sig, fmt.Errorf("parsing signature %q: %w", s, err)
	}
	if len(raw) != len(sig) {
		return sig, fmt.Errorf("parsing signature %q: got %d bytes, want %d", s, len(raw), len(sig))
	}
	copy(sig[:], raw)
	return sig, nil
}

func (s Signature) String() string {
	return base58Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	parsed, err := ParseSignature(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Hash is a 32-byte ledger hash, typically a recent blockhash anchoring a
// transaction to a point in chain history.
type Hash [32]byte

func (h Hash) String() string {
	return base58Encode(h[:])
}

// ExecutableMetadata tracks one automation that is owed a submission attempt.
// An entry exists iff the automation has a pending, not yet confirmed
// submission to make.
type ExecutableMetadata struct {
	// DueSlot is the slot at which the automation became eligible.
	DueSlot uint64 `json:"due_slot"`
	// SimulationFailures counts fetch and build failures since the entry
	// was created. It only grows; crossing MaxSimulationFailures drops the
	// entry.
	SimulationFailures uint64 `json:"simulation_failures"`
}

// TransactionRecord tracks one submitted transaction that has not yet been
// reconciled against ledger confirmation status.
type TransactionRecord struct {
	// SlotSent is the slot the transaction was handed to the network in.
	SlotSent uint64 `json:"slot_sent"`
	// Signature identifies the submitted transaction.
	Signature Signature `json:"signature"`
}

// PoolPosition is this executor's view of the active worker pool, recomputed
// from ledger state every round and discarded afterwards.
type PoolPosition struct {
	// Position is the worker's index in the pool, oldest member first.
	// -1 when the worker is not currently a member.
	Position int `json:"position"`
	// Workers is the pool membership in rotation order.
	Workers []Address `json:"workers"`
}

// Member reports whether the local worker currently holds a pool slot.
func (p PoolPosition) Member() bool {
	return p.Position >= 0
}

// ResolvePoolPosition locates worker within the fetched pool state.
func ResolvePoolPosition(pool *Pool, worker Address) PoolPosition {
	pos := PoolPosition{
		Position: -1,
		Workers:  append([]Address(nil), pool.Workers...),
	}
	for i, w := range pool.Workers {
		if w == worker {
			pos.Position = i
			break
		}
	}
	return pos
}

// ExecutorStats is a point-in-time snapshot of the scheduler's bookkeeping,
// exposed for observability.
type ExecutorStats struct {
	// Dropped is the lifetime count of automations abandoned after
	// crossing the simulation failure threshold.
	Dropped uint64 `json:"dropped"`
	// Executable is the number of automations currently owed an attempt.
	Executable int `json:"executable"`
	// Outstanding is the number of submitted transactions awaiting
	// confirmation reconciliation.
	Outstanding int `json:"outstanding"`
}

// SubmittedTx pairs an automation with the signature of the transaction
// submitted for it in a round.
type SubmittedTx struct {
	Ref       Address   `json:"ref"`
	Signature Signature `json:"signature"`
}

// RoundReport summarizes what one scheduling round did. The daemon journals
// it and feeds it to watch subscribers.
type RoundReport struct {
	Slot       uint64        `json:"slot"`
	Triggered  int           `json:"triggered"`
	Dropped    []Address     `json:"dropped,omitempty"`
	Confirmed  []Address     `json:"confirmed,omitempty"`
	Retried    []Address     `json:"retried,omitempty"`
	Vetoed     []Address     `json:"vetoed,omitempty"`
	Submitted  []SubmittedTx `json:"submitted,omitempty"`
	Rotation   *Signature    `json:"rotation,omitempty"`
	PoolMember bool          `json:"pool_member"`
	PoolSize   int           `json:"pool_size"`
}
