// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces used to report harvest-run progress. Events flow through
// a background goroutine and fan out to pluggable sinks such as the run
// ledger or the status API's latest-event cache.
package progress
