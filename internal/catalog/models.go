package catalog

import (
	"strings"
	"time"
)

// Status is the terminal outcome of an import job.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusComplete,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the recordable job outcomes.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job is one finished import run.
type Job struct {
	ID           string
	Label        string
	Status       Status
	Success      bool
	Cancelled    bool
	OutputDir    string
	ManifestPath string
	Textures     int
	Buffers      int
	Assets       int
	Deduplicated int
	ErrorCount   int
	WarningCount int
	Duration     time.Duration
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// Asset is one declared item's final placement.
type Asset struct {
	JobID     string
	Key       string
	Source    string
	Kind      string
	TableName string
	Index     uint32
	Signature string
}

// HealthSummary aggregates job outcomes.
type HealthSummary struct {
	Total     int
	Complete  int
	Failed    int
	Cancelled int
}

// DatabaseHealth is diagnostic detail about the catalog database itself.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	TotalJobs        int
	IntegrityCheck   bool
	Error            string
}
