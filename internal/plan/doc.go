// Package plan compiles declared assets and their dependency edges into a
// deterministic, cycle-free execution order.
//
// A Planner collects items (dense ids in registration order), deduplicated
// dependency edges, and a per-job pipeline registry. MakePlan validates the
// graph, runs a stable topological sort with registration order as the
// tie-break, builds one readiness gate per item, and seals the planner:
// later mutations fail with ErrSealed. Cycles and missing pipeline
// registrations abort planning with blocking errors that name the involved
// items; no partial plan is ever returned.
package plan
