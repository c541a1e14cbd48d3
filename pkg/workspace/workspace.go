package workspace

import (
	"context"
	"os"
)

// StatsFileName is the summary-statistics file whose presence marks a
// completed simulation report. The report directory is the grandparent
// of this file.
const StatsFileName = "global_stats.json"

// FS is the narrow filesystem capability surface the report selector and
// the archive writer depend on. The workspace may be backed by a remote
// filesystem, so every call can block and fail independently; callers
// must not assume atomicity across multiple calls.
type FS interface {
	// FindStatsFiles returns the paths of all summary-statistics files
	// under root, at any depth. A missing or empty workspace yields an
	// empty result, not an error.
	FindStatsFiles(ctx context.Context, root string) ([]string, error)

	// Stat returns file metadata for path.
	Stat(ctx context.Context, path string) (os.FileInfo, error)

	// MkdirAll creates a directory along with any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// MkdirExclusive creates a directory, failing if it already exists
	// (errors.Is(err, os.ErrExist)). Creation is atomic: of two
	// concurrent callers, at most one succeeds.
	MkdirExclusive(ctx context.Context, path string) error

	// CopyDir recursively copies the tree rooted at src into dst, which
	// must already exist.
	CopyDir(ctx context.Context, src, dst string) error

	// RemoveAll removes path and everything below it.
	RemoveAll(ctx context.Context, path string) error
}
