// Package observer tracks the automations assigned to this executor and
// evaluates their trigger conditions each round. It is the source of the
// "newly triggered" set handed to the execution scheduler: the engine seeds
// it with a program-accounts scan at startup, refreshes entries after
// confirmed executions, and calls Collect once per slot.
package observer

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/adhocore/gronx"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

// AccountReader reads raw account bytes, used to evaluate account triggers.
type AccountReader interface {
	AccountData(ctx context.Context, addr cranklib.Address) ([]byte, error)
}

// tracked is the observer's view of one automation between refreshes.
type tracked struct {
	automation *cranklib.Automation
	// fired marks an immediate trigger as already emitted.
	fired bool
	// cronBase is the reference time the next cron tick is computed from.
	cronBase time.Time
	// lastHash is the watched range's hash at the last fire or first
	// observation. Valid only when hashKnown is set.
	lastHash  uint64
	hashKnown bool
}

// Observer evaluates triggers against ledger state.
type Observer struct {
	reader  AccountReader
	log     logger.Logger
	gron    *gronx.Gronx
	tracked *cranklib.SyncMap[cranklib.Address, *tracked]
	paused  *cranklib.SyncMap[cranklib.Address, struct{}]
}

// New returns an empty observer reading watched accounts through reader.
func New(reader AccountReader, l logger.Logger) *Observer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Observer{
		reader:  reader,
		log:     l,
		gron:    gronx.New(),
		tracked: cranklib.NewSyncMap[cranklib.Address, *tracked](),
		paused:  cranklib.NewSyncMap[cranklib.Address, struct{}](),
	}
}

// Track adds or refreshes the automation at ref. Refreshing after a
// confirmed execution re-arms the trigger against the new on-chain exec
// context. Cron automations with an invalid schedule are rejected.
func (o *Observer) Track(ref cranklib.Address, a *cranklib.Automation) error {
	if a == nil {
		return fmt.Errorf("tracking %s: nil automation", ref.Short())
	}
	if a.Trigger.Kind == cranklib.TriggerCron && !o.gron.IsValid(a.Trigger.Schedule) {
		return fmt.Errorf("tracking %s: invalid cron schedule %q", ref.Short(), a.Trigger.Schedule)
	}
	t := &tracked{automation: a}
	switch a.Trigger.Kind {
	case cranklib.TriggerCron:
		// Ticks are measured from the last execution, or from creation
		// for automations that never ran.
		if a.Started() {
			t.cronBase = time.Unix(a.ExecContext.TriggerContext.StartedAt, 0).UTC()
		} else {
			t.cronBase = time.Unix(a.CreatedAt.UnixTimestamp, 0).UTC()
		}
	case cranklib.TriggerAccount:
		if a.Started() {
			t.lastHash = a.ExecContext.TriggerContext.DataHash
			t.hashKnown = true
		}
	}
	o.tracked.Set(ref, t)
	return nil
}

// Forget drops ref from observation.
func (o *Observer) Forget(ref cranklib.Address) {
	o.tracked.Delete(ref)
}

// Automation returns the last-known state of ref, if tracked.
func (o *Observer) Automation(ref cranklib.Address) (*cranklib.Automation, bool) {
	t, ok := o.tracked.Load(ref)
	if !ok {
		return nil, false
	}
	return t.automation, true
}

// TrackedCount returns the number of automations under observation.
func (o *Observer) TrackedCount() int {
	return o.tracked.Len()
}

// Pause suppresses ref locally: it stays tracked but never fires until
// Resume. This is an operator control, independent of the on-chain paused
// flag.
func (o *Observer) Pause(ref cranklib.Address) {
	o.paused.Set(ref, struct{}{})
}

// Resume lifts a local Pause.
func (o *Observer) Resume(ref cranklib.Address) {
	o.paused.Delete(ref)
}

// PausedRefs lists the locally paused automations.
func (o *Observer) PausedRefs() []cranklib.Address {
	refs := make([]cranklib.Address, 0, o.paused.Len())
	o.paused.Range(func(ref cranklib.Address, _ struct{}) bool {
		refs = append(refs, ref)
		return true
	})
	sort.Slice(refs, func(i, j int) bool {
		return bytes.Compare(refs[i][:], refs[j][:]) < 0
	})
	return refs
}

// Collect returns the automations whose trigger fires at the given block
// time, ordered by address. Firing advances the trigger's bookkeeping so a
// condition is emitted once; it re-arms on the next Track refresh or, for
// cron triggers, at the next schedule tick.
func (o *Observer) Collect(ctx context.Context, now time.Time) []cranklib.Address {
	hashes := o.fetchWatchedHashes(ctx)
	var fired []cranklib.Address
	o.tracked.Update(func(kv map[cranklib.Address]*tracked) {
		for ref, t := range kv {
			if t.automation.Paused {
				continue
			}
			if _, paused := o.paused.Load(ref); paused {
				continue
			}
			if o.evaluate(ref, t, now, hashes) {
				fired = append(fired, ref)
			}
		}
	})
	sort.Slice(fired, func(i, j int) bool {
		return bytes.Compare(fired[i][:], fired[j][:]) < 0
	})
	return fired
}

// fetchWatchedHashes reads every watched account before the evaluation
// critical section, so ledger round trips never run under the tracked-map
// lock. Fetch failures leave the ref out of the result and its trigger
// unevaluated this round.
func (o *Observer) fetchWatchedHashes(ctx context.Context) map[cranklib.Address]uint64 {
	type watch struct {
		ref          cranklib.Address
		addr         cranklib.Address
		offset, size uint64
	}
	var watches []watch
	o.tracked.Range(func(ref cranklib.Address, t *tracked) bool {
		trig := t.automation.Trigger
		if trig.Kind == cranklib.TriggerAccount && !t.automation.Paused {
			watches = append(watches, watch{ref: ref, addr: trig.Address, offset: trig.Offset, size: trig.Size})
		}
		return true
	})
	hashes := make(map[cranklib.Address]uint64, len(watches))
	for _, w := range watches {
		data, err := o.reader.AccountData(ctx, w.addr)
		if err != nil {
			o.log.Warning("watched account %s for %s: %v", w.addr.Short(), w.ref.Short(), err)
			continue
		}
		hashes[w.ref] = hashRange(data, w.offset, w.size)
	}
	return hashes
}

func (o *Observer) evaluate(ref cranklib.Address, t *tracked, now time.Time, hashes map[cranklib.Address]uint64) bool {
	switch t.automation.Trigger.Kind {
	case cranklib.TriggerImmediate:
		if t.fired || t.automation.Started() {
			return false
		}
		t.fired = true
		return true

	case cranklib.TriggerCron:
		return o.evaluateCron(t, now)

	case cranklib.TriggerAccount:
		h, ok := hashes[ref]
		if !ok {
			return false
		}
		return t.observeHash(h)

	default:
		return false
	}
}

func (o *Observer) evaluateCron(t *tracked, now time.Time) bool {
	trig := t.automation.Trigger
	next, err := gronx.NextTickAfter(trig.Schedule, t.cronBase, false)
	if err != nil {
		o.log.Warning("cron schedule %q: %v", trig.Schedule, err)
		return false
	}
	if next.After(now) {
		return false
	}
	if trig.Skippable {
		// Collapse any missed backlog into the latest due tick.
		for {
			after, err := gronx.NextTickAfter(trig.Schedule, next, false)
			if err != nil || after.After(now) {
				break
			}
			next = after
		}
	}
	t.cronBase = next
	return true
}

// observeHash folds a newly observed watched-range hash into the trigger
// state and reports whether it fires. The first sighting establishes the
// baseline without firing.
func (t *tracked) observeHash(h uint64) bool {
	if !t.hashKnown {
		t.lastHash = h
		t.hashKnown = true
		return false
	}
	if h == t.lastHash {
		return false
	}
	t.lastHash = h
	return true
}

// hashRange hashes the watched byte window. A window past the end of the
// data clamps rather than failing, matching how the on-chain program reads
// partial accounts.
func hashRange(data []byte, offset, size uint64) uint64 {
	if offset > uint64(len(data)) {
		offset = uint64(len(data))
	}
	end := uint64(len(data))
	// size is added to offset only when it cannot overflow past the data:
	// both values come straight off the wire.
	if size != 0 && size < end-offset {
		end = offset + size
	}
	h := fnv.New64a()
	h.Write(data[offset:end])
	return h.Sum64()
}
