package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfops/simarchive/pkg/archive"
	"github.com/perfops/simarchive/pkg/selector"
	"github.com/perfops/simarchive/pkg/workspace"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// faultyFS wraps a real FS and injects errors into selected operations.
type faultyFS struct {
	workspace.FS
	copyErr  error
	mkdirErr error
}

func (f *faultyFS) CopyDir(ctx context.Context, src, dst string) error {
	if f.copyErr != nil {
		return f.copyErr
	}

	return f.FS.CopyDir(ctx, src, dst)
}

func (f *faultyFS) MkdirExclusive(ctx context.Context, path string) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}

	return f.FS.MkdirExclusive(ctx, path)
}

// writeCandidate creates a report directory with a stats file and
// returns it as a selector candidate.
func writeCandidate(t *testing.T, name string) selector.Candidate {
	t.Helper()

	dir := filepath.Join(t.TempDir(), name)
	sub := filepath.Join(dir, "simulation")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(sub, workspace.StatsFileName), []byte("{}"), 0o644,
	))

	return selector.Candidate{
		Path:    dir,
		Name:    name,
		ModTime: time.Now(),
	}
}

func TestSimulationID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{
			name: "timestamp suffix stripped",
			dir:  "load-test-20240101120000",
			want: "load-test",
		},
		{
			name: "single hyphen",
			dir:  "basicsimulation-20240101120000",
			want: "basicsimulation",
		},
		{
			name: "no hyphen",
			dir:  "basicsimulation",
			want: "basicsimulation",
		},
		{
			name: "leading hyphen only",
			dir:  "-20240101120000",
			want: "-20240101120000",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, archive.SimulationID(tt.dir))
		})
	}
}

func TestWriter_Archive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("copies the report tree", func(t *testing.T) {
		t.Parallel()

		w := archive.NewWriter(testLogger(), workspace.NewLocal())
		cand := writeCandidate(t, "load-test-20240101120000")
		root := filepath.Join(t.TempDir(), archive.SimulationsDirName)
		require.NoError(t, w.EnsureRoot(ctx, root))

		dir, skipped, err := w.Archive(ctx, cand, root)
		require.NoError(t, err)
		assert.False(t, skipped)
		assert.Equal(t, filepath.Join(root, cand.Name), dir)

		_, err = os.Stat(filepath.Join(
			dir, "simulation", workspace.StatsFileName,
		))
		assert.NoError(t, err)
	})

	t.Run("skips an existing target", func(t *testing.T) {
		t.Parallel()

		w := archive.NewWriter(testLogger(), workspace.NewLocal())
		cand := writeCandidate(t, "load-test-20240101120000")
		root := filepath.Join(t.TempDir(), archive.SimulationsDirName)
		require.NoError(t, w.EnsureRoot(ctx, root))

		_, skipped, err := w.Archive(ctx, cand, root)
		require.NoError(t, err)
		require.False(t, skipped)

		dir, skipped, err := w.Archive(ctx, cand, root)
		require.NoError(t, err)
		assert.True(t, skipped)
		assert.Empty(t, dir)
	})

	t.Run("mkdir failure skips the candidate", func(t *testing.T) {
		t.Parallel()

		fsys := &faultyFS{
			FS:       workspace.NewLocal(),
			mkdirErr: errors.New("permission denied"),
		}
		w := archive.NewWriter(testLogger(), fsys)
		cand := writeCandidate(t, "load-test-20240101120000")
		root := filepath.Join(t.TempDir(), archive.SimulationsDirName)
		require.NoError(t, w.EnsureRoot(ctx, root))

		_, skipped, err := w.Archive(ctx, cand, root)
		require.NoError(t, err)
		assert.True(t, skipped)
	})

	t.Run("copy failure removes the partial target", func(t *testing.T) {
		t.Parallel()

		fsys := &faultyFS{
			FS:      workspace.NewLocal(),
			copyErr: errors.New("connection reset"),
		}
		w := archive.NewWriter(testLogger(), fsys)
		cand := writeCandidate(t, "load-test-20240101120000")
		root := filepath.Join(t.TempDir(), archive.SimulationsDirName)
		require.NoError(t, w.EnsureRoot(ctx, root))

		_, skipped, err := w.Archive(ctx, cand, root)
		require.Error(t, err)
		assert.False(t, skipped)

		// A retry must not find a leftover directory and skip the report.
		_, statErr := os.Stat(filepath.Join(root, cand.Name))
		assert.True(t, os.IsNotExist(statErr))
	})
}
