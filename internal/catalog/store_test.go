package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"kiln/internal/catalog"
	"kiln/internal/diag"
	"kiln/internal/testsupport"
)

func finishedJob(id string, status catalog.Status, finished time.Time) *catalog.Job {
	return &catalog.Job{
		ID:           id,
		Label:        "nightly " + id,
		Status:       status,
		Success:      status == catalog.StatusComplete,
		Cancelled:    status == catalog.StatusCancelled,
		OutputDir:    "/tmp/cooked/" + id,
		ManifestPath: "/tmp/cooked/" + id + "/manifest.bin",
		Textures:     2,
		Buffers:      1,
		Assets:       3,
		Deduplicated: 1,
		Duration:     1200 * time.Millisecond,
		CreatedAt:    finished.Add(-3 * time.Second),
		FinishedAt:   finished,
	}
}

func TestRecordJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	finished := time.Date(2025, time.June, 2, 11, 40, 7, 0, time.UTC)
	job := finishedJob("job-1", catalog.StatusComplete, finished)
	job.ErrorCount = 0
	job.WarningCount = 2
	if err := store.RecordJob(ctx, job, nil, nil); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}

	fetched, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job to be found")
	}
	if fetched.Status != catalog.StatusComplete || !fetched.Success || fetched.Cancelled {
		t.Fatalf("unexpected outcome fields: %#v", fetched)
	}
	if fetched.Label != "nightly job-1" {
		t.Fatalf("unexpected label: %q", fetched.Label)
	}
	if fetched.OutputDir != job.OutputDir || fetched.ManifestPath != job.ManifestPath {
		t.Fatalf("unexpected paths: %q %q", fetched.OutputDir, fetched.ManifestPath)
	}
	if fetched.Textures != 2 || fetched.Buffers != 1 || fetched.Assets != 3 || fetched.Deduplicated != 1 {
		t.Fatalf("unexpected counts: %#v", fetched)
	}
	if fetched.WarningCount != 2 || fetched.ErrorCount != 0 {
		t.Fatalf("unexpected diagnostic counts: %#v", fetched)
	}
	if fetched.Duration != 1200*time.Millisecond {
		t.Fatalf("expected duration 1.2s, got %s", fetched.Duration)
	}
	if !fetched.FinishedAt.Equal(finished) {
		t.Fatalf("expected finished_at %s, got %s", finished, fetched.FinishedAt)
	}
	if !fetched.CreatedAt.Equal(finished.Add(-3 * time.Second)) {
		t.Fatalf("unexpected created_at %s", fetched.CreatedAt)
	}
}

func TestRecordJobPersistsAssetsAndDiagnostics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	job := finishedJob("job-2", catalog.StatusComplete, time.Now().UTC().Truncate(time.Second))
	assets := []catalog.Asset{
		{Key: "hero/albedo", Source: "textures/hero.png", Kind: "texture", TableName: "textures.idx", Index: 0, Signature: "aabbccdd"},
		{Key: "hero/mesh", Kind: "geometry", TableName: "assets.idx", Index: 1},
	}
	diags := []diag.Diagnostic{
		diag.Warning(diag.CodeCookFallback, "substituted fallback").ForItem("hero/albedo"),
		diag.Error(diag.CodeWriteFailed, "disk full"),
	}
	if err := store.RecordJob(ctx, job, assets, diags); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}

	gotAssets, err := store.AssetsForJob(ctx, "job-2")
	if err != nil {
		t.Fatalf("AssetsForJob failed: %v", err)
	}
	if len(gotAssets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(gotAssets))
	}
	if gotAssets[0].JobID != "job-2" || gotAssets[0].Key != "hero/albedo" {
		t.Fatalf("unexpected first asset: %#v", gotAssets[0])
	}
	if gotAssets[0].Source != "textures/hero.png" || gotAssets[0].Signature != "aabbccdd" {
		t.Fatalf("unexpected asset detail: %#v", gotAssets[0])
	}
	if gotAssets[1].TableName != "assets.idx" || gotAssets[1].Index != 1 {
		t.Fatalf("unexpected second asset: %#v", gotAssets[1])
	}
	if gotAssets[1].Source != "" {
		t.Fatalf("expected empty source, got %q", gotAssets[1].Source)
	}

	gotDiags, err := store.DiagnosticsForJob(ctx, "job-2")
	if err != nil {
		t.Fatalf("DiagnosticsForJob failed: %v", err)
	}
	if len(gotDiags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(gotDiags))
	}
	if gotDiags[0].Severity != diag.SeverityWarning || gotDiags[0].Code != diag.CodeCookFallback {
		t.Fatalf("unexpected first diagnostic: %#v", gotDiags[0])
	}
	if gotDiags[0].Item != "hero/albedo" {
		t.Fatalf("expected item tag, got %q", gotDiags[0].Item)
	}
	if gotDiags[1].Severity != diag.SeverityError || gotDiags[1].Item != "" {
		t.Fatalf("unexpected second diagnostic: %#v", gotDiags[1])
	}
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	job, err := store.GetJob(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestListJobsOrderingAndFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	base := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	seeds := []struct {
		id       string
		status   catalog.Status
		finished time.Time
	}{
		{"job-a", catalog.StatusComplete, base},
		{"job-b", catalog.StatusFailed, base.Add(time.Second)},
		{"job-c", catalog.StatusCancelled, base.Add(2 * time.Second)},
	}
	for _, seed := range seeds {
		if err := store.RecordJob(ctx, finishedJob(seed.id, seed.status, seed.finished), nil, nil); err != nil {
			t.Fatalf("RecordJob %s failed: %v", seed.id, err)
		}
	}

	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-c" || jobs[1].ID != "job-b" || jobs[2].ID != "job-a" {
		t.Fatalf("expected newest first, got %s,%s,%s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}

	limited, err := store.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("ListJobs limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "job-c" || limited[1].ID != "job-b" {
		t.Fatalf("unexpected limited listing: %#v", limited)
	}

	filtered, err := store.ListJobs(ctx, 0, catalog.StatusFailed, catalog.StatusCancelled)
	if err != nil {
		t.Fatalf("ListJobs filter failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 filtered jobs, got %d", len(filtered))
	}
	if filtered[0].ID != "job-c" || filtered[1].ID != "job-b" {
		t.Fatalf("unexpected filtered order: %s,%s", filtered[0].ID, filtered[1].ID)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	base := time.Date(2025, time.June, 2, 13, 0, 0, 0, time.UTC)
	statuses := []catalog.Status{
		catalog.StatusComplete,
		catalog.StatusComplete,
		catalog.StatusFailed,
		catalog.StatusCancelled,
	}
	for i, status := range statuses {
		job := finishedJob(string(rune('a'+i))+"-job", status, base.Add(time.Duration(i)*time.Second))
		if err := store.RecordJob(ctx, job, nil, nil); err != nil {
			t.Fatalf("RecordJob failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["complete"] != 2 || stats["failed"] != 1 || stats["cancelled"] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 4 || health.Complete != 2 || health.Failed != 1 || health.Cancelled != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestRemoveJobCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	job := finishedJob("job-3", catalog.StatusFailed, time.Now().UTC().Truncate(time.Second))
	assets := []catalog.Asset{{Key: "k", Kind: "buffer", TableName: "buffers.idx", Index: 0}}
	diags := []diag.Diagnostic{diag.Error(diag.CodeCookFailed, "boom")}
	if err := store.RecordJob(ctx, job, assets, diags); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}

	removed, err := store.RemoveJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if !removed {
		t.Fatal("expected job to be removed")
	}

	fetched, err := store.GetJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched != nil {
		t.Fatalf("expected job gone, got %#v", fetched)
	}
	gotAssets, err := store.AssetsForJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("AssetsForJob failed: %v", err)
	}
	if len(gotAssets) != 0 {
		t.Fatalf("expected assets cascade-deleted, got %d", len(gotAssets))
	}
	gotDiags, err := store.DiagnosticsForJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("DiagnosticsForJob failed: %v", err)
	}
	if len(gotDiags) != 0 {
		t.Fatalf("expected diagnostics cascade-deleted, got %d", len(gotDiags))
	}

	removed, err = store.RemoveJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("RemoveJob second call failed: %v", err)
	}
	if removed {
		t.Fatal("expected false when job already gone")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	first := testsupport.CompletedJob("job-4")
	if err := store.RecordJob(ctx, &first, nil, nil); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}
	second := testsupport.CompletedJob("job-5")
	second.FinishedAt = second.FinishedAt.Add(time.Second)
	if err := store.RecordJob(ctx, &second, nil, nil); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}

	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 jobs cleared, got %d", cleared)
	}

	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty catalog, got %d jobs", len(jobs))
	}
}

func TestClearFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	seed := map[string]catalog.Status{
		"job-keep":      catalog.StatusComplete,
		"job-failed":    catalog.StatusFailed,
		"job-cancelled": catalog.StatusCancelled,
	}
	offset := time.Duration(0)
	for id, status := range seed {
		if err := store.RecordJob(ctx, finishedJob(id, status, now.Add(offset)), nil, nil); err != nil {
			t.Fatalf("RecordJob failed: %v", err)
		}
		offset += time.Second
	}

	cleared, err := store.Clear(ctx, catalog.StatusFailed, catalog.StatusCancelled)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 jobs cleared, got %d", cleared)
	}

	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-keep" {
		t.Fatalf("expected only the complete job to remain, got %#v", jobs)
	}
}

func TestCheckHealthOnFreshCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	job := testsupport.CompletedJob("job-6")
	if err := store.RecordJob(ctx, &job, nil, nil); err != nil {
		t.Fatalf("RecordJob failed: %v", err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if health.TotalJobs != 1 {
		t.Fatalf("expected 1 job, got %d", health.TotalJobs)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := sql.Open("sqlite", cfg.CatalogPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	if _, err := catalog.Open(cfg); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := catalog.ParseStatus(" Complete "); !ok || status != catalog.StatusComplete {
		t.Fatalf("expected complete, got %q ok=%v", status, ok)
	}
	if _, ok := catalog.ParseStatus("pending"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := catalog.ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}
