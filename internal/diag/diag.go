package diag

import (
	"fmt"
	"sync"
)

// Severity classifies how a diagnostic affects the owning job.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes emitted by the pipeline. Codes are stable identifiers;
// messages are free-form and may change.
const (
	CodeCycle           = "plan.cycle"
	CodeMissingPipeline = "plan.pipeline_missing"
	CodeDuplicateKey    = "plan.duplicate_key"
	CodeSealed          = "plan.sealed"
	CodePlanRejected    = "plan.rejected"
	CodeCookFailed      = "cook.failed"
	CodeCookPanic       = "cook.panic"
	CodeCookFallback    = "cook.fallback"
	CodeWriteFailed     = "emit.write_failed"
	CodeCancelled       = "import.cancelled"
	CodeManifestFailed  = "manifest.write_failed"
	CodeCatalogFailed   = "catalog.record_failed"
)

// Diagnostic is a single structured finding attached to a job report.
// Item carries the debug name of the plan item the finding concerns, when
// the finding is item-scoped.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Item     string   `json:"item,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Item != "" {
		return fmt.Sprintf("%s %s [%s]: %s", d.Severity, d.Code, d.Item, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
}

// Info builds an informational diagnostic.
func Info(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityInfo, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Warning builds a warning diagnostic.
func Warning(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error builds an error diagnostic.
func Error(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ForItem returns a copy of the diagnostic tagged with an item debug name.
func (d Diagnostic) ForItem(item string) Diagnostic {
	d.Item = item
	return d
}

// CountSeverity tallies diagnostics of one severity in a snapshot.
func CountSeverity(diags []Diagnostic, severity Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == severity {
			n++
		}
	}
	return n
}

// Collector aggregates diagnostics from multiple goroutines. Pipeline
// workers and emitter completions append concurrently with the job's
// orchestration goroutine, so every method locks.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Add appends one or more diagnostics.
func (c *Collector) Add(diags ...Diagnostic) {
	if len(diags) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, diags...)
}

// Snapshot returns a copy of the collected diagnostics in arrival order.
func (c *Collector) Snapshot() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Len reports the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// HasErrors reports whether any collected diagnostic has error severity.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
