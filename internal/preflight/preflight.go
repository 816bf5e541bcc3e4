package preflight

import (
	"context"

	"kiln/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. Directory
// checks run even when the config is invalid so the operator sees each
// problem in one pass.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckConfig(cfg))
	results = append(results, CheckDirectoryAccess("Output root", cfg.OutputRoot()))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.LogDir()))
	results = append(results, CheckCatalog(ctx, cfg))

	return results
}

// Passed reports whether every result in the slice passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
