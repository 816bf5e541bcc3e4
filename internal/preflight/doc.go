// Package preflight provides readiness checks for the filesystem paths
// and the catalog database that kiln depends on.
//
// These checks run in two contexts:
//   - The CLI "kiln status" command calls RunAll to display environment
//     health before anyone queues a long cook.
//   - The CLI "kiln cook" command probes the output-root lock so a second
//     invocation reports the running service instead of a bare lock error.
//
// Checks only report; they never create or repair anything themselves.
package preflight
