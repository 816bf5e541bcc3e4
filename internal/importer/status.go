package importer

import (
	"time"

	"kiln/internal/diag"
	"kiln/internal/manifest"
	"kiln/internal/session"
)

// JobID identifies one submitted job. Ids are usable for cancellation and
// queries the moment SubmitImport returns.
type JobID string

// Status is the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusParsing   Status = "parsing"
	StatusCooking   Status = "cooking"
	StatusWriting   Status = "writing"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Progress is one synchronous progress notification from a job's
// orchestration goroutine. Item is the debug name of the item that just
// emitted, empty on pure status transitions. Callbacks must not block; they
// run on the job goroutine.
type Progress struct {
	JobID     JobID
	Status    Status
	Completed int
	Total     int
	Item      string
}

// CompletionFunc receives the final report exactly once per job.
type CompletionFunc func(*Report)

// ProgressFunc receives status transitions and per-item completions.
type ProgressFunc func(Progress)

// CancelFunc is notified once when cancellation is requested for a job.
type CancelFunc func(JobID)

// Report is the full outcome of one job.
type Report struct {
	JobID        JobID
	Label        string
	Status       Status
	Success      bool
	Cancelled    bool
	OutputDir    string
	ManifestPath string
	Files        []manifest.File
	Counts       session.Counts
	Diagnostics  []diag.Diagnostic
	CreatedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// ErrorCount tallies error-severity diagnostics.
func (r *Report) ErrorCount() int {
	return diag.CountSeverity(r.Diagnostics, diag.SeverityError)
}

// WarningCount tallies warning-severity diagnostics.
func (r *Report) WarningCount() int {
	return diag.CountSeverity(r.Diagnostics, diag.SeverityWarning)
}
