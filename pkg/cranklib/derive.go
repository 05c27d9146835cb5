package cranklib

import (
	"crypto/sha256"
	"encoding/binary"
)

// Program-owned accounts live at addresses derived from seed tuples, so any
// party can locate the pool, registry or a worker account without an index.

var (
	// NetworkProgramID owns the pool, registry, snapshot and worker accounts.
	NetworkProgramID = programAddress("crankd.network.v1")

	// AutomationProgramID owns automation accounts and executes their
	// instructions.
	AutomationProgramID = programAddress("crankd.automation.v1")

	// PayerPlaceholder is the stand-in payer written into automation
	// instructions. The on-chain program replaces it with the submitting
	// worker's signatory so execution costs land on the executing worker.
	PayerPlaceholder = programAddress("crankd.payer.v1")
)

func programAddress(name string) Address {
	return Address(sha256.Sum256([]byte(name)))
}

// DeriveAddress hashes a seed tuple together with the owning program's
// address. The same tuple always yields the same account address.
func DeriveAddress(programID Address, seeds ...[]byte) Address {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	var a Address
	h.Sum(a[:0])
	return a
}

func beUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// PoolAddress returns the address of the worker pool with the given id.
func PoolAddress(id uint64) Address {
	return DeriveAddress(NetworkProgramID, []byte("pool"), beUint64(id))
}

// RegistryAddress returns the address of the singleton registry account.
func RegistryAddress() Address {
	return DeriveAddress(NetworkProgramID, []byte("registry"))
}

// SnapshotAddress returns the address of the stake snapshot for an epoch.
func SnapshotAddress(epoch uint64) Address {
	return DeriveAddress(NetworkProgramID, []byte("snapshot"), beUint64(epoch))
}

// SnapshotFrameAddress returns the address of a worker's frame within a
// snapshot.
func SnapshotFrameAddress(snapshot Address, workerID uint64) Address {
	return DeriveAddress(NetworkProgramID, []byte("snapshot_frame"), snapshot[:], beUint64(workerID))
}

// WorkerAddress returns the address of the worker account with the given id.
func WorkerAddress(id uint64) Address {
	return DeriveAddress(NetworkProgramID, []byte("worker"), beUint64(id))
}

// FeeAddress returns the address of a worker's fee account.
func FeeAddress(worker Address) Address {
	return DeriveAddress(NetworkProgramID, []byte("fee"), worker[:])
}

// EpochAddress returns the address of the epoch account with the given id.
func EpochAddress(id uint64) Address {
	return DeriveAddress(NetworkProgramID, []byte("epoch"), beUint64(id))
}
