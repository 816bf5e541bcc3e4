package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kiln/internal/catalog"
	"kiln/internal/config"
	"kiln/internal/importer"
	"kiln/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.OutputRoot = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.CatalogPath = filepath.Join(t.TempDir(), "kiln.db")
	return &cfg
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	result := CheckConfig(testConfig(t))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckConfig_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.OutputRoot = ""
	result := CheckConfig(cfg)
	if result.Passed {
		t.Fatal("expected failure for empty output root")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckCatalog_NotCreatedYet(t *testing.T) {
	result := CheckCatalog(context.Background(), testConfig(t))
	if !result.Passed {
		t.Fatalf("expected pass for absent catalog, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "not created yet") {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckCatalog_Healthy(t *testing.T) {
	cfg := testConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close catalog: %v", err)
	}

	result := CheckCatalog(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckCatalog_CorruptFile(t *testing.T) {
	cfg := testConfig(t)
	testsupport.WriteFile(t, cfg.Paths.CatalogPath, 64)

	result := CheckCatalog(context.Background(), cfg)
	if result.Passed {
		t.Fatalf("expected failure for corrupt catalog, got: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsEachCheck(t *testing.T) {
	results := RunAll(context.Background(), testConfig(t))

	wantNames := []string{"Configuration", "Output root", "Log directory", "Catalog"}
	if len(results) != len(wantNames) {
		t.Fatalf("expected %d results, got %d", len(wantNames), len(results))
	}
	for i, r := range results {
		if r.Name != wantNames[i] {
			t.Errorf("result %d name = %q, want %q", i, r.Name, wantNames[i])
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !Passed(results) {
		t.Fatal("Passed should report true when every check passes")
	}
}

func TestRunAll_SurfacesMissingDirectories(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.OutputRoot = filepath.Join(cfg.Paths.OutputRoot, "missing")

	results := RunAll(context.Background(), cfg)
	if Passed(results) {
		t.Fatal("expected at least one failing check")
	}
}

func TestProbeLock_Inactive(t *testing.T) {
	probe := ProbeLock(testConfig(t))
	if probe.Active {
		t.Fatal("expected inactive lock for idle output root")
	}
	if probe.Detail() != "no active import service" {
		t.Fatalf("detail = %q", probe.Detail())
	}
}

func TestProbeLock_ActiveWhileServiceRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := importer.New(cfg)
	if err != nil {
		t.Fatalf("importer.New: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if probe := ProbeLock(cfg); !probe.Active {
		t.Fatal("expected active lock while the service runs")
	}

	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if probe := ProbeLock(cfg); probe.Active {
		t.Fatal("expected inactive lock after shutdown")
	}
}
