package cranklib

import (
	"bytes"
	"math"
	"sort"
)

// backoffDelay returns the extra slots an automation must wait past its due
// slot: 0, 1, 3, 7, 15, ... doubling per recorded simulation failure.
func backoffDelay(failures uint64) uint64 {
	if failures >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << failures) - 1
}

// eligibleRefs computes the due set for one round. Pool members (and every
// worker while the pool is empty) pass on the backoff gate alone; outside
// workers additionally wait out the timeout window so members keep first
// claim on fresh work. Caller holds at least a read lock on meta.
func eligibleRefs(meta map[Address]ExecutableMetadata, slot uint64, pos PoolPosition) []Address {
	gateOutsider := !pos.Member() && len(pos.Workers) > 0
	refs := make([]Address, 0, len(meta))
	for ref, m := range meta {
		if slot < m.DueSlot {
			continue
		}
		elapsed := slot - m.DueSlot
		if gateOutsider && elapsed <= TimeoutWindow {
			continue
		}
		if elapsed < backoffDelay(m.SimulationFailures) {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		mi, mj := meta[refs[i]], meta[refs[j]]
		if mi.DueSlot != mj.DueSlot {
			return mi.DueSlot < mj.DueSlot
		}
		return bytes.Compare(refs[i][:], refs[j][:]) < 0
	})
	return refs
}
