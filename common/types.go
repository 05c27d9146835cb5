package common

import (
	"time"

	"github.com/crankd/crankd/pkg/cranklib"
)

// StatusResponse is the daemon's answer to a status request.
type StatusResponse struct {
	Slot        uint64   `json:"slot"`
	WorkerID    uint64   `json:"worker_id"`
	Signatory   string   `json:"signatory"`
	Dropped     uint64   `json:"dropped"`
	Executable  int      `json:"executable"`
	Outstanding int      `json:"outstanding"`
	PoolMember  bool     `json:"pool_member"`
	PoolSize    int      `json:"pool_size"`
	Paused      []string `json:"paused,omitempty"`
	Uptime      string   `json:"uptime"`
}

// RoundUpdate is pushed to watch subscribers after every scheduling round.
type RoundUpdate struct {
	Report cranklib.RoundReport `json:"report"`
	Time   time.Time            `json:"time"`
}

// HistoryParams selects journal rows. A zero Ref matches every automation;
// Limit zero means the daemon's default page size.
type HistoryParams struct {
	Ref   string `json:"ref,omitempty"`
	Event string `json:"event,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryEntry is one journaled scheduling event.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Slot      uint64    `json:"slot"`
	Ref       string    `json:"ref"`
	Signature string    `json:"signature,omitempty"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is the daemon's answer to a history request.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// RefParams carries a single automation address for pause, resume and flush
// requests.
type RefParams struct {
	Ref string `json:"ref"`
}

// VersionResponse reports the daemon build.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"build_type,omitempty"`
}
