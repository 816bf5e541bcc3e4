package testsupport

import (
	"testing"
	"time"

	"kiln/internal/catalog"
	"kiln/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// CompletedJob builds a finished job record suitable for seeding the catalog
// in tests. Timestamps are fixed so ordering assertions stay deterministic.
func CompletedJob(id string) catalog.Job {
	finished := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)
	return catalog.Job{
		ID:           id,
		Label:        "pack " + id,
		Status:       catalog.StatusComplete,
		Success:      true,
		OutputDir:    "/tmp/cooked/" + id,
		ManifestPath: "/tmp/cooked/" + id + "/manifest.bin",
		Textures:     1,
		Duration:     1500 * time.Millisecond,
		CreatedAt:    finished.Add(-2 * time.Second),
		FinishedAt:   finished,
	}
}
