package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time interface check.
var _ FS = (*localFS)(nil)

type localFS struct{}

// NewLocal creates an FS backed by the local filesystem.
func NewLocal() FS {
	return &localFS{}
}

// FindStatsFiles walks root and returns every summary-statistics file
// found, sorted by filepath.Walk's lexical order. A missing root is
// treated as an empty workspace.
func (l *localFS) FindStatsFiles(
	ctx context.Context, root string,
) ([]string, error) {
	var matches []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == StatsFileName {
			matches = append(matches, path)
		}

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("walking workspace %s: %w", root, err)
	}

	return matches, nil
}

// Stat returns file metadata for path.
func (l *localFS) Stat(_ context.Context, path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// MkdirAll creates a directory along with any missing parents.
func (l *localFS) MkdirAll(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

// MkdirExclusive creates a directory, failing if it already exists.
// os.Mkdir maps to an exclusive create on every supported platform, so
// of two concurrent callers at most one succeeds.
func (l *localFS) MkdirExclusive(_ context.Context, path string) error {
	return os.Mkdir(path, 0o755)
}

// CopyDir recursively copies the tree rooted at src into dst.
func (l *localFS) CopyDir(ctx context.Context, src, dst string) error {
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if rel == "." {
				return nil
			}

			return os.MkdirAll(target, info.Mode().Perm())
		}

		return copyFile(path, target, info.Mode().Perm())
	})
	if err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	return nil
}

// RemoveAll removes path and everything below it.
func (l *localFS) RemoveAll(_ context.Context, path string) error {
	return os.RemoveAll(path)
}

// copyFile copies a single regular file, preserving its permissions.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copying file contents: %w", err)
	}

	return out.Close()
}
