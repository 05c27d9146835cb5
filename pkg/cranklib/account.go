package cranklib

// Ledger account types mirrored by the executor. Each type carries its wire
// codec; DecodeX functions accept the raw account bytes returned by the
// ledger and reject truncated or malformed data.

// ClockData is a moment in chain time as recorded by the cluster.
type ClockData struct {
	Slot          uint64 `json:"slot"`
	Epoch         uint64 `json:"epoch"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

// TriggerContext records what satisfied an automation's trigger at its last
// execution. Only the field matching the trigger kind is meaningful.
type TriggerContext struct {
	Kind TriggerKind `json:"kind"`
	// DataHash is the hash of the watched byte range (account triggers).
	DataHash uint64 `json:"data_hash,omitempty"`
	// StartedAt is the unix time of the fired tick (cron triggers).
	StartedAt int64 `json:"started_at,omitempty"`
}

// ExecContext accumulates execution progress for a started automation. A nil
// ExecContext on an Automation means it has never been kicked off.
type ExecContext struct {
	ExecsSinceReimbursement uint64         `json:"execs_since_reimbursement"`
	ExecsSinceSlot          uint64         `json:"execs_since_slot"`
	LastExecAt              uint64         `json:"last_exec_at"`
	TriggerContext          TriggerContext `json:"trigger_context"`
}

// Automation is one on-chain job: a trigger condition plus the next
// instruction the network owes it.
type Automation struct {
	Authority          Address      `json:"authority"`
	CreatedAt          ClockData    `json:"created_at"`
	ExecContext        *ExecContext `json:"exec_context,omitempty"`
	Fee                uint64       `json:"fee"`
	ID                 string       `json:"id"`
	KickoffInstruction Instruction  `json:"kickoff_instruction"`
	NextInstruction    *Instruction `json:"next_instruction,omitempty"`
	Paused             bool         `json:"paused"`
	RateLimit          uint64       `json:"rate_limit"`
	Trigger            Trigger      `json:"trigger"`
}

// Started reports whether the automation has executed at least once.
func (a *Automation) Started() bool {
	return a.ExecContext != nil
}

func (a *Automation) Encode() []byte {
	var w binWriter
	w.addr(a.Authority)
	w.u64(a.CreatedAt.Slot)
	w.u64(a.CreatedAt.Epoch)
	w.i64(a.CreatedAt.UnixTimestamp)
	if a.ExecContext != nil {
		w.flag(true)
		w.u64(a.ExecContext.ExecsSinceReimbursement)
		w.u64(a.ExecContext.ExecsSinceSlot)
		w.u64(a.ExecContext.LastExecAt)
		w.u8(uint8(a.ExecContext.TriggerContext.Kind))
		w.u64(a.ExecContext.TriggerContext.DataHash)
		w.i64(a.ExecContext.TriggerContext.StartedAt)
	} else {
		w.flag(false)
	}
	w.u64(a.Fee)
	w.str(a.ID)
	a.KickoffInstruction.encode(&w)
	if a.NextInstruction != nil {
		w.flag(true)
		a.NextInstruction.encode(&w)
	} else {
		w.flag(false)
	}
	w.flag(a.Paused)
	w.u64(a.RateLimit)
	a.Trigger.encode(&w)
	return w.buf
}

func DecodeAutomation(data []byte) (*Automation, error) {
	r := &binReader{buf: data}
	var a Automation
	a.Authority = r.addr()
	a.CreatedAt = ClockData{Slot: r.u64(), Epoch: r.u64(), UnixTimestamp: r.i64()}
	if r.flag() {
		a.ExecContext = &ExecContext{
			ExecsSinceReimbursement: r.u64(),
			ExecsSinceSlot:          r.u64(),
			LastExecAt:              r.u64(),
			TriggerContext: TriggerContext{
				Kind:      TriggerKind(r.u8()),
				DataHash:  r.u64(),
				StartedAt: r.i64(),
			},
		}
	}
	a.Fee = r.u64()
	a.ID = r.str()
	a.KickoffInstruction = decodeInstruction(r)
	if r.flag() {
		ix := decodeInstruction(r)
		a.NextInstruction = &ix
	}
	a.Paused = r.flag()
	a.RateLimit = r.u64()
	a.Trigger = decodeTrigger(r)
	if r.err != nil {
		return nil, r.err
	}
	return &a, nil
}

// Pool is the ordered set of workers currently privileged to execute
// automations first. Index 0 is the oldest member; rotation appends at the
// back and evicts from the front once Size is exceeded.
type Pool struct {
	ID      uint64    `json:"id"`
	Size    uint64    `json:"size"`
	Workers []Address `json:"workers"`
}

func (p *Pool) Encode() []byte {
	var w binWriter
	w.u64(p.ID)
	w.u64(p.Size)
	w.u64(uint64(len(p.Workers)))
	for _, worker := range p.Workers {
		w.addr(worker)
	}
	return w.buf
}

func DecodePool(data []byte) (*Pool, error) {
	r := &binReader{buf: data}
	var p Pool
	p.ID = r.u64()
	p.Size = r.u64()
	n := r.u64()
	if r.err == nil && n > uint64(len(data)) {
		return nil, ErrShortAccountData
	}
	for i := uint64(0); i < n && r.err == nil; i++ {
		p.Workers = append(p.Workers, r.addr())
	}
	if r.err != nil {
		return nil, r.err
	}
	return &p, nil
}

// Registry is the network-wide bookkeeping account for epochs and workers.
type Registry struct {
	CurrentEpoch  uint64 `json:"current_epoch"`
	Locked        bool   `json:"locked"`
	Nonce         uint64 `json:"nonce"`
	TotalPools    uint64 `json:"total_pools"`
	TotalUnstakes uint64 `json:"total_unstakes"`
	TotalWorkers  uint64 `json:"total_workers"`
}

func (reg *Registry) Encode() []byte {
	var w binWriter
	w.u64(reg.CurrentEpoch)
	w.flag(reg.Locked)
	w.u64(reg.Nonce)
	w.u64(reg.TotalPools)
	w.u64(reg.TotalUnstakes)
	w.u64(reg.TotalWorkers)
	return w.buf
}

func DecodeRegistry(data []byte) (*Registry, error) {
	r := &binReader{buf: data}
	reg := Registry{
		CurrentEpoch:  r.u64(),
		Locked:        r.flag(),
		Nonce:         r.u64(),
		TotalPools:    r.u64(),
		TotalUnstakes: r.u64(),
		TotalWorkers:  r.u64(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &reg, nil
}

// Snapshot captures the stake distribution of one epoch.
type Snapshot struct {
	ID          uint64 `json:"id"`
	TotalFrames uint64 `json:"total_frames"`
	TotalStake  uint64 `json:"total_stake"`
}

func (s *Snapshot) Encode() []byte {
	var w binWriter
	w.u64(s.ID)
	w.u64(s.TotalFrames)
	w.u64(s.TotalStake)
	return w.buf
}

func DecodeSnapshot(data []byte) (*Snapshot, error) {
	r := &binReader{buf: data}
	s := Snapshot{ID: r.u64(), TotalFrames: r.u64(), TotalStake: r.u64()}
	if r.err != nil {
		return nil, r.err
	}
	return &s, nil
}

// SnapshotFrame is one worker's stake entry within a snapshot.
type SnapshotFrame struct {
	ID           uint64  `json:"id"`
	Snapshot     Address `json:"snapshot"`
	StakeAmount  uint64  `json:"stake_amount"`
	TotalEntries uint64  `json:"total_entries"`
	Worker       Address `json:"worker"`
}

func (f *SnapshotFrame) Encode() []byte {
	var w binWriter
	w.u64(f.ID)
	w.addr(f.Snapshot)
	w.u64(f.StakeAmount)
	w.u64(f.TotalEntries)
	w.addr(f.Worker)
	return w.buf
}

func DecodeSnapshotFrame(data []byte) (*SnapshotFrame, error) {
	r := &binReader{buf: data}
	f := SnapshotFrame{
		ID:           r.u64(),
		Snapshot:     r.addr(),
		StakeAmount:  r.u64(),
		TotalEntries: r.u64(),
		Worker:       r.addr(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &f, nil
}

// Worker is a registered executor identity.
type Worker struct {
	ID               uint64  `json:"id"`
	Authority        Address `json:"authority"`
	Signatory        Address `json:"signatory"`
	CommissionRate   uint64  `json:"commission_rate"`
	TotalDelegations uint64  `json:"total_delegations"`
}

func (wk *Worker) Encode() []byte {
	var w binWriter
	w.u64(wk.ID)
	w.addr(wk.Authority)
	w.addr(wk.Signatory)
	w.u64(wk.CommissionRate)
	w.u64(wk.TotalDelegations)
	return w.buf
}

func DecodeWorker(data []byte) (*Worker, error) {
	r := &binReader{buf: data}
	wk := Worker{
		ID:               r.u64(),
		Authority:        r.addr(),
		Signatory:        r.addr(),
		CommissionRate:   r.u64(),
		TotalDelegations: r.u64(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &wk, nil
}
