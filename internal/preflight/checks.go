package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"ferry/internal/catalog"
	"ferry/internal/config"
	"ferry/internal/deps"
	"ferry/internal/ledger"
	"ferry/internal/sink"
)

const remoteCheckTimeout = 15 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
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

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes int64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free, %s needed", humanize.IBytes(available), humanize.IBytes(uint64(max(minBytes, 0))))
	if minBytes > 0 && available < uint64(minBytes) {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLedger opens the configured ledger and reads its statistics.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Ledger"

	store, err := ledger.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer store.Close()

	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()
	stats, err := store.Stats(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("query failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s, %d records (%d uploaded)", cfg.Ledger.Driver, stats.Total, stats.Uploaded)}
}

// CheckSink asks the sink to verify its destination. Sinks without a check
// pass with a note.
func CheckSink(ctx context.Context, dest sink.Sink) Result {
	name := "Sink (" + dest.Name() + ")"
	checker, ok := dest.(sink.Checker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "no check available"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()
	if err := checker.Check(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckCatalog lists the configured root folder once.
func CheckCatalog(ctx context.Context, cfg *config.Config) Result {
	const name = "Catalog"

	if err := cfg.ValidateCatalog(time.Now()); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	var note string
	if exp, ok := config.TokenExpiry(cfg.Catalog.AccessToken); ok && time.Until(exp) < 24*time.Hour {
		note = "token expires " + humanize.Time(exp)
	}

	client, err := catalog.NewClient(catalog.OptionsFromConfig(cfg))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()
	listing, err := client.FetchFolder(checkCtx, cfg.Catalog.CourseID, cfg.Catalog.RootFolderID)
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	detail := fmt.Sprintf("root folder lists %d entries", len(listing.Children))
	if note != "" {
		detail += "; " + note
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries a run needs. Batch runs
// only download direct files, so ffmpeg is optional for them.
func CheckSystemDeps(ctx context.Context, cfg *config.Config, batch bool) []deps.Status {
	return []deps.Status{deps.CheckRemux(ctx, cfg.RemuxBinary(), batch)}
}

func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
