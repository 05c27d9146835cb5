package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

func addrOf(b byte) cranklib.Address {
	var a cranklib.Address
	a[0] = b
	a[31] = b
	return a
}

type fakeReader struct {
	mu    sync.Mutex
	data  map[cranklib.Address][]byte
	errs  map[cranklib.Address]error
	reads int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		data: make(map[cranklib.Address][]byte),
		errs: make(map[cranklib.Address]error),
	}
}

func (f *fakeReader) AccountData(_ context.Context, addr cranklib.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err, ok := f.errs[addr]; ok {
		return nil, err
	}
	data, ok := f.data[addr]
	if !ok {
		return nil, cranklib.ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeReader) set(addr cranklib.Address, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[addr] = data
}

func collect(t *testing.T, o *Observer, now time.Time) []cranklib.Address {
	t.Helper()
	return o.Collect(context.Background(), now)
}

func TestImmediateFiresOnce(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	ref := addrOf(1)
	if err := o.Track(ref, &cranklib.Automation{ID: "imm", Trigger: cranklib.ImmediateTrigger()}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	now := time.Now()
	if got := collect(t, o, now); len(got) != 1 || got[0] != ref {
		t.Fatalf("first collect = %v, want [%s]", got, ref.Short())
	}
	if got := collect(t, o, now.Add(time.Minute)); len(got) != 0 {
		t.Errorf("immediate trigger fired twice: %v", got)
	}
}

func TestImmediateSkipsStarted(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	aut := &cranklib.Automation{
		ID:          "imm",
		Trigger:     cranklib.ImmediateTrigger(),
		ExecContext: &cranklib.ExecContext{LastExecAt: 90},
	}
	if err := o.Track(addrOf(1), aut); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := collect(t, o, time.Now()); len(got) != 0 {
		t.Errorf("started immediate automation fired: %v", got)
	}
}

func TestCronFiresOnSchedule(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	ref := addrOf(2)
	created := time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	aut := &cranklib.Automation{
		ID:        "hourly",
		Trigger:   cranklib.CronTrigger("0 * * * *", false),
		CreatedAt: cranklib.ClockData{UnixTimestamp: created.Unix()},
	}
	if err := o.Track(ref, aut); err != nil {
		t.Fatalf("Track: %v", err)
	}

	// Next tick after 10:20 is 11:00.
	if got := collect(t, o, created.Add(30*time.Minute)); len(got) != 0 {
		t.Fatalf("fired before schedule: %v", got)
	}
	if got := collect(t, o, created.Add(41*time.Minute)); len(got) != 1 {
		t.Fatalf("did not fire at tick: %v", got)
	}
	// Same tick does not fire again; the next one does.
	if got := collect(t, o, created.Add(42*time.Minute)); len(got) != 0 {
		t.Fatalf("tick fired twice: %v", got)
	}
	if got := collect(t, o, created.Add(101*time.Minute)); len(got) != 1 {
		t.Fatalf("next tick did not fire: %v", got)
	}
}

func TestCronBacklog(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 30, 0, time.UTC)
	now := created.Add(5 * time.Hour)

	mk := func(skippable bool) (*Observer, cranklib.Address) {
		o := New(newFakeReader(), logger.NewNopLogger())
		ref := addrOf(3)
		aut := &cranklib.Automation{
			ID:        "hourly",
			Trigger:   cranklib.CronTrigger("0 * * * *", skippable),
			CreatedAt: cranklib.ClockData{UnixTimestamp: created.Unix()},
		}
		if err := o.Track(ref, aut); err != nil {
			t.Fatalf("Track: %v", err)
		}
		return o, ref
	}

	// Skippable: five missed ticks collapse into one fire, then quiet.
	o, _ := mk(true)
	if got := collect(t, o, now); len(got) != 1 {
		t.Fatalf("skippable: first collect = %v", got)
	}
	if got := collect(t, o, now); len(got) != 0 {
		t.Errorf("skippable: backlog not collapsed: %v", got)
	}

	// Non-skippable: each collect replays one missed tick.
	o, _ = mk(false)
	for i := 0; i < 5; i++ {
		if got := collect(t, o, now); len(got) != 1 {
			t.Fatalf("non-skippable: replay %d = %v", i, got)
		}
	}
	if got := collect(t, o, now); len(got) != 0 {
		t.Errorf("non-skippable: fired past backlog: %v", got)
	}
}

func TestCronInvalidScheduleRejected(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	err := o.Track(addrOf(4), &cranklib.Automation{
		ID:      "bad",
		Trigger: cranklib.CronTrigger("not a schedule", false),
	})
	if err == nil {
		t.Fatal("want error for invalid schedule")
	}
	if o.TrackedCount() != 0 {
		t.Errorf("invalid automation was tracked")
	}
}

func TestAccountTriggerFiresOnChange(t *testing.T) {
	reader := newFakeReader()
	watched := addrOf(0x77)
	reader.set(watched, []byte("aaaa-bbbb-cccc"))

	o := New(reader, logger.NewNopLogger())
	ref := addrOf(5)
	aut := &cranklib.Automation{ID: "watch", Trigger: cranklib.AccountTrigger(watched, 5, 4)}
	if err := o.Track(ref, aut); err != nil {
		t.Fatalf("Track: %v", err)
	}
	now := time.Now()

	// First sighting records the baseline without firing.
	if got := collect(t, o, now); len(got) != 0 {
		t.Fatalf("fired on baseline: %v", got)
	}
	// A change outside the watched window does not fire.
	reader.set(watched, []byte("zzzz-bbbb-cccc"))
	if got := collect(t, o, now); len(got) != 0 {
		t.Fatalf("fired on out-of-window change: %v", got)
	}
	// A change inside the window fires once.
	reader.set(watched, []byte("zzzz-dddd-cccc"))
	if got := collect(t, o, now); len(got) != 1 || got[0] != ref {
		t.Fatalf("did not fire on change: %v", got)
	}
	if got := collect(t, o, now); len(got) != 0 {
		t.Errorf("fired twice for one change: %v", got)
	}
}

func TestAccountTriggerBaselineFromExecContext(t *testing.T) {
	reader := newFakeReader()
	watched := addrOf(0x78)
	reader.set(watched, []byte("payload"))

	o := New(reader, logger.NewNopLogger())
	ref := addrOf(6)
	aut := &cranklib.Automation{
		ID:      "watch",
		Trigger: cranklib.AccountTrigger(watched, 0, 0),
		ExecContext: &cranklib.ExecContext{
			TriggerContext: cranklib.TriggerContext{
				Kind:     cranklib.TriggerAccount,
				DataHash: hashRange([]byte("payload"), 0, 0),
			},
		},
	}
	if err := o.Track(ref, aut); err != nil {
		t.Fatalf("Track: %v", err)
	}
	// Data matches the recorded hash: no fire.
	if got := collect(t, o, time.Now()); len(got) != 0 {
		t.Fatalf("fired without change: %v", got)
	}
	reader.set(watched, []byte("changed"))
	if got := collect(t, o, time.Now()); len(got) != 1 {
		t.Fatalf("did not fire on change from recorded hash: %v", got)
	}
}

func TestAccountTriggerFetchFailureSkips(t *testing.T) {
	reader := newFakeReader()
	watched := addrOf(0x79)
	reader.errs[watched] = errors.New("rpc down")

	o := New(reader, logger.NewNopLogger())
	if err := o.Track(addrOf(7), &cranklib.Automation{ID: "w", Trigger: cranklib.AccountTrigger(watched, 0, 0)}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := collect(t, o, time.Now()); len(got) != 0 {
		t.Errorf("fired despite fetch failure: %v", got)
	}
}

func TestPausedNeverFires(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	onchain := addrOf(8)
	local := addrOf(9)
	if err := o.Track(onchain, &cranklib.Automation{ID: "p1", Paused: true, Trigger: cranklib.ImmediateTrigger()}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := o.Track(local, &cranklib.Automation{ID: "p2", Trigger: cranklib.ImmediateTrigger()}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	o.Pause(local)

	if got := collect(t, o, time.Now()); len(got) != 0 {
		t.Fatalf("paused automations fired: %v", got)
	}
	if refs := o.PausedRefs(); len(refs) != 1 || refs[0] != local {
		t.Errorf("PausedRefs = %v", refs)
	}

	o.Resume(local)
	if got := collect(t, o, time.Now()); len(got) != 1 || got[0] != local {
		t.Errorf("resumed automation did not fire: %v", got)
	}
}

func TestForget(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	ref := addrOf(10)
	if err := o.Track(ref, &cranklib.Automation{ID: "f", Trigger: cranklib.ImmediateTrigger()}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	o.Forget(ref)
	if o.TrackedCount() != 0 {
		t.Errorf("TrackedCount = %d after Forget", o.TrackedCount())
	}
	if got := collect(t, o, time.Now()); len(got) != 0 {
		t.Errorf("forgotten automation fired: %v", got)
	}
}

func TestCollectOrderIsDeterministic(t *testing.T) {
	o := New(newFakeReader(), logger.NewNopLogger())
	for _, b := range []byte{9, 3, 7, 1} {
		if err := o.Track(addrOf(b), &cranklib.Automation{ID: "x", Trigger: cranklib.ImmediateTrigger()}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	got := collect(t, o, time.Now())
	want := []cranklib.Address{addrOf(1), addrOf(3), addrOf(7), addrOf(9)}
	if len(got) != len(want) {
		t.Fatalf("collect = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i].Short(), want[i].Short())
		}
	}
}

func TestHashRangeClamps(t *testing.T) {
	data := []byte("0123456789")
	if hashRange(data, 4, 2) == hashRange(data, 4, 3) {
		t.Error("distinct windows hash equal")
	}
	// Over-long and out-of-bounds windows clamp instead of panicking.
	if hashRange(data, 8, 100) != hashRange(data, 8, 2) {
		t.Error("clamped window mismatch")
	}
	_ = hashRange(data, 100, 5)
	// offset+size wrapping around uint64 clamps to the data end too; the
	// window fields are raw account bytes and can hold anything.
	if hashRange(data, 5, ^uint64(0)) != hashRange(data, 5, 5) {
		t.Error("overflowing window mismatch")
	}
	if hashRange(data, 0, ^uint64(0)) != hashRange(data, 0, 10) {
		t.Error("overflowing full window mismatch")
	}
	_ = hashRange(nil, 1, ^uint64(0))
}
