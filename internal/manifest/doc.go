// Package manifest writes and reads the per-job import manifest.
//
// The manifest is the last file a job writes. It names every output file
// with its final size and maps each declared item key to the table slot
// holding its cooked payload. The whole file is packed into one buffer and
// written with a single call, so a manifest on disk is always complete.
package manifest
