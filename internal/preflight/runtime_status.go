package preflight

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"kiln/internal/config"
	"kiln/internal/importer"
)

// LockProbe reports whether another kiln currently owns the output root.
type LockProbe struct {
	Path   string
	Active bool
}

// ProbeLock attempts to take and immediately release the output-root lock.
// Active is true only when another process holds it; a missing output root
// probes as inactive, since nothing can be cooking into it.
func ProbeLock(cfg *config.Config) LockProbe {
	if cfg == nil {
		return LockProbe{}
	}
	path := filepath.Join(cfg.OutputRoot(), importer.LockFileName)
	probe := LockProbe{Path: path}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return probe
	}
	if !ok {
		probe.Active = true
		return probe
	}
	_ = lock.Unlock()
	return probe
}

// Detail renders a display-friendly summary for status UIs.
func (p LockProbe) Detail() string {
	if p.Active {
		return fmt.Sprintf("import service active (holds %s)", p.Path)
	}
	return "no active import service"
}
