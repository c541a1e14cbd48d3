package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfops/simarchive/pkg/archive"
	"github.com/perfops/simarchive/pkg/pipeline"
	"github.com/perfops/simarchive/pkg/selector"
	"github.com/perfops/simarchive/pkg/workspace"
)

const validStats = `{
  "name": "All Requests",
  "numberOfRequests": {"total": 20, "ok": 19, "ko": 1},
  "percentiles1": {"total": 80, "ok": 82, "ko": 210},
  "percentiles4": {"total": 1385, "ok": 1387, "ko": 210},
  "meanNumberOfRequestsPerSecond": {"total": 1.25, "ok": 1.1875, "ko": 0.0625}
}`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	log := testLogger()
	fsys := workspace.NewLocal()

	return pipeline.New(
		log,
		selector.New(log, fsys, 0),
		archive.NewWriter(log, fsys),
	)
}

// writeReport creates workspace/<name>/simulation/global_stats.json with
// the given stats content.
func writeReport(t *testing.T, root, name, stats string) {
	t.Helper()

	sub := filepath.Join(root, name, "simulation")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(sub, workspace.StatsFileName), []byte(stats), 0o644,
	))
}

func boolPtr(b bool) *bool { return &b }

func TestPipeline_TrackingDisabledOrUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		enabled *bool
	}{
		{name: "status unknown", enabled: nil},
		{name: "disabled", enabled: boolPtr(false)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ws := t.TempDir()
			writeReport(t, ws, "load-test-20240101120000", validStats)
			runDir := filepath.Join(t.TempDir(), "run-1")

			sims, err := newPipeline(t).Run(ctx, pipeline.Options{
				Enabled:      tt.enabled,
				WorkspaceDir: ws,
				RunDir:       runDir,
				RunStart:     time.Now().Add(-time.Hour),
			})
			require.NoError(t, err)
			assert.Empty(t, sims)

			// No directories are touched.
			_, statErr := os.Stat(runDir)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestPipeline_EmptyWorkspace(t *testing.T) {
	t.Parallel()

	runDir := filepath.Join(t.TempDir(), "run-1")

	sims, err := newPipeline(t).Run(context.Background(), pipeline.Options{
		Enabled:      boolPtr(true),
		WorkspaceDir: t.TempDir(),
		RunDir:       runDir,
		RunStart:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, sims)

	// The archive root is only created once there is something to archive.
	_, statErr := os.Stat(filepath.Join(runDir, archive.SimulationsDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_ArchivesNewReport(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeReport(t, ws, "load-test-20240101120000", validStats)
	runDir := filepath.Join(t.TempDir(), "run-1")

	runStart := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	sims, err := newPipeline(t).Run(context.Background(), pipeline.Options{
		Enabled:      boolPtr(true),
		WorkspaceDir: ws,
		RunDir:       runDir,
		RunStart:     runStart,
	})
	require.NoError(t, err)
	require.Len(t, sims, 1)

	sim := sims[0]
	assert.Equal(t, "load-test", sim.SimulationID)
	assert.Equal(t, filepath.Join(
		runDir, archive.SimulationsDirName, "load-test-20240101120000",
	), sim.Dir)

	require.NotNil(t, sim.Stats)
	assert.Equal(t, float64(20), sim.Stats.NumberOfRequests.Total)
	assert.Equal(t, float64(1), sim.Stats.NumberOfRequests.KO)

	// The archive holds an exact copy of the report tree.
	_, err = os.Stat(filepath.Join(
		sim.Dir, "simulation", workspace.StatsFileName,
	))
	assert.NoError(t, err)
}

func TestPipeline_Idempotent(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeReport(t, ws, "load-test-20240101120000", validStats)
	runDir := filepath.Join(t.TempDir(), "run-1")

	opts := pipeline.Options{
		Enabled:      boolPtr(true),
		WorkspaceDir: ws,
		RunDir:       runDir,
		RunStart:     time.Now().Add(-time.Hour),
	}

	p := newPipeline(t)

	first, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Unchanged workspace: everything is already archived.
	second, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestPipeline_IncrementalInvocation(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeReport(t, ws, "alpha-test-20240101120000", validStats)
	writeReport(t, ws, "bravo-test-20240101130000", validStats)
	runDir := filepath.Join(t.TempDir(), "run-1")

	opts := pipeline.Options{
		Enabled:      boolPtr(true),
		WorkspaceDir: ws,
		RunDir:       runDir,
		RunStart:     time.Now().Add(-time.Hour),
	}

	p := newPipeline(t)

	first, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "alpha-test", first[0].SimulationID)
	assert.Equal(t, "bravo-test", first[1].SimulationID)

	// A later build step produces one more report.
	writeReport(t, ws, "charlie-test-20240101140000", validStats)

	second, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "charlie-test", second[0].SimulationID)
}

func TestPipeline_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeReport(t, ws, "alpha-test-20240101120000", validStats)
	writeReport(t, ws, "broken-test-20240101130000", "{not json")
	writeReport(t, ws, "charlie-test-20240101140000", validStats)
	runDir := filepath.Join(t.TempDir(), "run-1")

	sims, err := newPipeline(t).Run(context.Background(), pipeline.Options{
		Enabled:      boolPtr(true),
		WorkspaceDir: ws,
		RunDir:       runDir,
		RunStart:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, sims, 2)

	ids := []string{sims[0].SimulationID, sims[1].SimulationID}
	assert.Equal(t, []string{"alpha-test", "charlie-test"}, ids)
}
