// Package emit writes cooked payloads into per-job output files and keeps
// the index tables that reference them.
//
// Each emitter owns one data file and one table. Emit deduplicates by content
// signature, reserves an aligned byte range with a lock-free size counter,
// queues the payload write, and appends an in-memory record. The returned
// index is valid the moment Emit returns, long before bytes reach disk.
//
// Emit and Finalize run on the job goroutine. The only state shared with the
// writer goroutines is the size counter and the write queue. Write failures
// are accumulated, never retried; Finalize reports them.
package emit
