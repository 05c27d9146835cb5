package cmd

import (
	"os"
	"path/filepath"
)

const (
	DEF_RPC_URL = "http://127.0.0.1:8899"
	DEF_WS_URL  = "ws://127.0.0.1:8900"
)

const configDirEnv = "CRANKD_CONFIG_DIR"

// configDir resolves the daemon's state directory. It honors
// CRANKD_CONFIG_DIR and falls back to ~/.crankd.
func configDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crankd"
	}
	return filepath.Join(home, ".crankd")
}

const DESCRIPTION = `
Crankd is a keeper daemon for ledger automations. It watches
automation accounts on-chain, evaluates their triggers every slot,
and submits the due execution transactions signed with the local
worker identity.
`

const (
	DaemonDescription = `The daemon command runs the crankd keeper in the foreground.
It loads the worker keypair, connects to the ledger RPC and
slot stream, and starts executing due automations.

Example:
        crankd daemon --worker-id 7

`
	StatusDescription = `The status command prints the running daemon's scheduling
snapshot: current slot, pool membership, executable and
outstanding counts, and locally paused automations.

Example:
        crankd status

`
	WatchDescription = `The watch command streams live round summaries from the
daemon and renders one progress bar per in-flight
transaction, aged against the confirmation window.

Example:
        crankd watch

`
	HistoryDescription = `The history command queries the daemon's scheduling journal.
Entries can be narrowed to one automation or one event kind.

Example:
        crankd history --ref <automation address> --event confirmed

`
	PauseDescription = `The pause command suspends trigger evaluation for one
automation on this worker only. The on-chain account is
not modified.

Example:
        crankd pause <automation address>

`
	ResumeDescription = `The resume command lifts a local pause set by the pause
command.

Example:
        crankd resume <automation address>

`
	FlushDescription = `The flush command clears an automation's local scheduling
state: its backoff counter and any in-flight transaction
record. The next trigger starts from a clean slate.

Example:
        crankd flush <automation address>

`
	KeyDescription = `The key command manages the worker's ed25519 signing
identity, stored encrypted under the config directory.

Example:
        crankd key init
        crankd key show
        crankd key import <hex seed>
        crankd key delete --force

`
	StopDaemonDescription = `The stop-daemon command signals the running daemon to shut
down gracefully, waiting for the in-flight round to finish.

Example:
        crankd stop-daemon

`
)
