// Package gate implements the per-item readiness tracker that orders plan
// execution: a consumer's gate opens once every producer it depends on has
// completed.
//
// Gates are created by the planner with a deduplicated producer list and are
// driven by the job's orchestration goroutine; only the Ready channel is
// safe to observe from other goroutines. The channel closes exactly once,
// and a gate with no producers is born open.
package gate
