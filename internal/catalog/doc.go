// Package catalog persists finished import jobs in a SQLite database.
//
// The catalog is a record of what was cooked, not a work queue. Jobs land
// here once, at finalize, together with their asset mappings and
// diagnostics. The CLI reads it for listing, inspection, and health checks.
package catalog
