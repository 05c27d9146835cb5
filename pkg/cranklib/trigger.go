package cranklib

import "fmt"

// TriggerKind discriminates the conditions that make an automation fire.
type TriggerKind uint8

const (
	// TriggerAccount fires when the data of a watched account changes.
	TriggerAccount TriggerKind = iota
	// TriggerCron fires on a recurring schedule in cron syntax.
	TriggerCron
	// TriggerImmediate fires once, as soon as the automation is observed.
	TriggerImmediate
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerAccount:
		return "account"
	case TriggerCron:
		return "cron"
	case TriggerImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Trigger is an automation's firing condition. Only the fields of the active
// kind are meaningful.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// Account trigger: watch Size bytes of the account at Address starting
	// at Offset.
	Address Address `json:"address,omitempty"`
	Offset  uint64  `json:"offset,omitempty"`
	Size    uint64  `json:"size,omitempty"`

	// Cron trigger: Schedule in cron syntax. When Skippable is set, ticks
	// missed while the network or this worker was down collapse into the
	// most recent one instead of replaying the backlog.
	Schedule  string `json:"schedule,omitempty"`
	Skippable bool   `json:"skippable,omitempty"`
}

// AccountTrigger fires whenever the watched byte range changes.
func AccountTrigger(addr Address, offset, size uint64) Trigger {
	return Trigger{Kind: TriggerAccount, Address: addr, Offset: offset, Size: size}
}

// CronTrigger fires on the given cron schedule.
func CronTrigger(schedule string, skippable bool) Trigger {
	return Trigger{Kind: TriggerCron, Schedule: schedule, Skippable: skippable}
}

// ImmediateTrigger fires on first observation.
func ImmediateTrigger() Trigger {
	return Trigger{Kind: TriggerImmediate}
}

func (t *Trigger) encode(w *binWriter) {
	w.u8(uint8(t.Kind))
	switch t.Kind {
	case TriggerAccount:
		w.addr(t.Address)
		w.u64(t.Offset)
		w.u64(t.Size)
	case TriggerCron:
		w.str(t.Schedule)
		w.flag(t.Skippable)
	case TriggerImmediate:
	}
}

func decodeTrigger(r *binReader) Trigger {
	var t Trigger
	t.Kind = TriggerKind(r.u8())
	switch t.Kind {
	case TriggerAccount:
		t.Address = r.addr()
		t.Offset = r.u64()
		t.Size = r.u64()
	case TriggerCron:
		t.Schedule = r.str()
		t.Skippable = r.flag()
	case TriggerImmediate:
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown trigger kind %d", uint8(t.Kind))
		}
	}
	return t
}
