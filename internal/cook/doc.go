// Package cook holds the pure compute side of the pipeline: per-kind
// descriptors, stage functions, and cooked payload types.
//
// Cooking performs no file I/O and assigns no indices. Every stage is a
// deterministic transform, and payload byte layout is fixed (little-endian
// packing, mip-major subresource order) so identical logical inputs always
// produce identical bytes and therefore identical content signatures.
//
// CPU-heavy stages run through a Runner so callers can offload them to a
// worker pool; the bundled inline runner keeps tests and fallback paths
// synchronous. Cancellation is observed between stages via the runner.
package cook
