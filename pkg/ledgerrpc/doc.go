// Package ledgerrpc is crankd's transport to the ledger: a JSON-RPC 2.0
// client over HTTP for account reads, signature statuses and transaction
// submission, plus a WebSocket slot subscription that drives the engine's
// round cadence. The client implements the capability interfaces the
// executor core consumes (cranklib.AccountFetcher, cranklib.StatusChecker,
// cranklib.BatchSubmitter), so the daemon wires it straight in.
package ledgerrpc
