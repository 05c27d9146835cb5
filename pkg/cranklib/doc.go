// Package cranklib implements the execution scheduler at the core of crankd.
//
// The scheduler tracks on-chain automations that are due for execution,
// applies timeout and backoff policy, deduplicates against transactions
// already in flight, coordinates the executor's worker-pool membership, and
// drives the build, batch-submit, confirm and retry pipeline once per ledger
// slot. It owns no transport of its own: ledger reads, signature status
// queries, transaction building and batch submission are supplied by the
// caller through the AccountFetcher, StatusChecker, Builder and
// BatchSubmitter interfaces, which keeps every scheduling decision unit
// testable against in-memory fakes.
package cranklib
