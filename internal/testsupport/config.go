package testsupport

import (
	"path/filepath"
	"testing"

	"kiln/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Small bounded queues keep back-pressure paths reachable in tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputRoot = filepath.Join(base, "cooked")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CatalogPath = filepath.Join(base, "catalog", "kiln.db")
	cfg.Cooking.PipelineWorkers = 2
	cfg.Cooking.PipelineQueueDepth = 4
	cfg.Cooking.IOWriters = 1
	cfg.Cooking.WorkerPoolSize = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxConcurrentJobs overrides the job concurrency limit on the test config.
func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cooking.MaxConcurrentJobs = n
	}
}

// WithPipelineQueueDepth overrides the per-pipeline queue depth on the test
// config.
func WithPipelineQueueDepth(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cooking.PipelineQueueDepth = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputRoot)
}
