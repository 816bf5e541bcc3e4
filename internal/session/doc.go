// Package session owns the output side of one import job.
//
// A session lazily creates the per-kind emitters under the job directory,
// collects diagnostics from any goroutine, and finalizes everything in a
// fixed order with the manifest written last. A cancelled session drains its
// emitters and writes neither tables nor manifest, so no reader can observe
// a manifest that references unfinished data.
//
// Emitter accessors and Finalize belong to the job goroutine. AddDiagnostic
// and Cancel are safe from any goroutine.
package session
