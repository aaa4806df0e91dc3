// Package sinks implements concrete progress consumers: structured logging,
// the ledger-backed run progress writer, and the latest-event cache served by
// the status API. Each sink satisfies the progress.Sink interface and is safe
// for repeated Consume/Close cycles.
package sinks
