// Package importer runs cooking jobs from submission to a finished report.
//
// The Service accepts Requests from any goroutine, holds the output-root
// lock so only one kiln writes a root at a time, and dispatches up to a
// configured number of concurrent jobs. Each job runs on a single
// orchestration goroutine (the pump): it compiles the plan, submits steps to
// the kind pipelines as their gates fire, collects cooked results over a
// fan-in channel, emits payloads in compiled order so index assignment is
// deterministic, resolves producer indices into dependent work, and
// finalizes the session with the manifest written last.
//
// Cancellation is cooperative. The pump checks its context at the top of
// every iteration, in-flight cooks observe the same context between stages,
// and a cancelled job drains its pipelines before finalizing in cancelled
// mode, which publishes neither tables nor manifest. A failed cook is not
// fatal: the item's fallback payload is emitted with a warning diagnostic so
// dependents still resolve to a valid index.
//
// Finished jobs are recorded in the catalog when a store is attached;
// recording failures become diagnostics, never job failures.
package importer
