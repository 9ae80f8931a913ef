package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"gazetteer/internal/assetstore"
	"gazetteer/internal/catalog"
	"gazetteer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minArchiveFreeBytes is the free space floor for the archive volume. Page
// captures with media routinely run tens of megabytes each.
const minArchiveFreeBytes = 512 * 1024 * 1024

// RunAll executes all applicable preflight checks for the given config.
// Checks for the asset store only run when it is enabled.
func RunAll(ctx context.Context, cfg *config.Config, store *catalog.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Archive root", cfg.Paths.ArchiveRoot),
		CheckFreeSpace("Archive free space", cfg.Paths.ArchiveRoot),
		CheckArchiverBinary(cfg.Archiver.Binary),
	}

	if store != nil {
		results = append(results, CheckCatalog(ctx, store))
	}

	if cfg.AssetStore.Enabled {
		results = append(results, CheckAssetStore(ctx, cfg))
	}

	return results
}

// Failures filters a result set down to the failed checks.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the volume behind path has room for captures.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minArchiveFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%d MiB free, need %d MiB)", path, free/(1024*1024), minArchiveFreeBytes/(1024*1024))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free/(1024*1024))}
}

// CheckArchiverBinary verifies the capture tool resolves on PATH or as an
// absolute path.
func CheckArchiverBinary(binary string) Result {
	const name = "Capture tool"
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", binary)}
	}
	return Result{Name: name, Passed: true, Detail: binary}
}

// CheckCatalog verifies the catalog database answers queries.
func CheckCatalog(ctx context.Context, store *catalog.Store) Result {
	const name = "Catalog database"
	if err := store.CheckHealth(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: store.Path()}
}

// CheckAssetStore verifies the asset store answers requests.
func CheckAssetStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Asset store"
	client := assetstore.New(cfg)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: cfg.AssetStore.URL}
}
