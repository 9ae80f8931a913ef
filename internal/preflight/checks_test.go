package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gazetteer/internal/preflight"
	"gazetteer/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %s", dir, result.Detail)
	}

	missing := preflight.CheckDirectoryAccess("Data directory", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatal("expected failure for missing directory")
	}
}

func TestCheckArchiverBinary(t *testing.T) {
	if result := preflight.CheckArchiverBinary("sh"); !result.Passed {
		t.Fatalf("sh should resolve: %s", result.Detail)
	}
	if result := preflight.CheckArchiverBinary("definitely-not-a-binary-9aa1"); result.Passed {
		t.Fatal("expected failure for unknown binary")
	}
	if result := preflight.CheckArchiverBinary(""); result.Passed {
		t.Fatal("expected failure for unconfigured binary")
	}
}

func TestCheckCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	result := preflight.CheckCatalog(context.Background(), store)
	if !result.Passed {
		t.Fatalf("expected healthy catalog: %s", result.Detail)
	}
}

func TestCheckAssetStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAssetStore(server.URL))
	result := preflight.CheckAssetStore(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected reachable asset store: %s", result.Detail)
	}

	server.Close()
	result = preflight.CheckAssetStore(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for unreachable asset store")
	}
}

func TestRunAllCollectsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedArchiver())
	store := testsupport.MustOpenStore(t, cfg)

	results := preflight.RunAll(context.Background(), cfg, store)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if failed := preflight.Failures(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failures: %+v", failed)
	}

	cfg.Archiver.Binary = "missing-capture-tool"
	results = preflight.RunAll(context.Background(), cfg, store)
	if failed := preflight.Failures(results); len(failed) != 1 {
		t.Fatalf("expected exactly the binary check to fail: %+v", failed)
	}
}
