package runstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfops/simarchive/pkg/config"
	"github.com/perfops/simarchive/pkg/pipeline"
	"github.com/perfops/simarchive/pkg/report"
	"github.com/perfops/simarchive/pkg/runstate"
)

func setupTestStore(t *testing.T) runstate.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := runstate.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func archived(id, dir string, total float64) pipeline.ArchivedSimulation {
	return pipeline.ArchivedSimulation{
		SimulationID: id,
		Dir:          dir,
		Stats: &report.GlobalStats{
			Name: "All Requests",
			NumberOfRequests: report.Metric{
				Total: total,
				OK:    total - 1,
				KO:    1,
			},
		},
	}
}

func TestStore_AppendSimulations_SeedsRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	startedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendSimulations(ctx, "run-1", startedAt,
		[]pipeline.ArchivedSimulation{
			archived("load-test", "/runs/run-1/simulations/load-test-1", 20),
		},
	))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, startedAt.UnixMilli(), run.StartedAt)

	sims, err := s.ListSimulations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, sims, 1)
	assert.Equal(t, "load-test", sims[0].SimulationID)
	assert.Equal(t, 0, sims[0].Position)
	assert.Equal(t, int64(20), sims[0].RequestsTotal)
	assert.Equal(t, int64(19), sims[0].RequestsOK)
	assert.Equal(t, int64(1), sims[0].RequestsKO)
	assert.Contains(t, sims[0].StatsJSON, `"total":20`)
}

func TestStore_AppendSimulations_AccumulatesAcrossInvocations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	startedAt := time.Now().UTC()

	require.NoError(t, s.AppendSimulations(ctx, "run-1", startedAt,
		[]pipeline.ArchivedSimulation{
			archived("alpha-test", "/runs/run-1/simulations/alpha-1", 10),
			archived("bravo-test", "/runs/run-1/simulations/bravo-1", 20),
		},
	))

	// Second invocation for the same run appends, never replaces.
	require.NoError(t, s.AppendSimulations(ctx, "run-1", startedAt,
		[]pipeline.ArchivedSimulation{
			archived("charlie-test", "/runs/run-1/simulations/charlie-1", 30),
		},
	))

	sims, err := s.ListSimulations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, sims, 3)

	ids := make([]string, 0, len(sims))
	positions := make([]int, 0, len(sims))

	for _, sim := range sims {
		ids = append(ids, sim.SimulationID)
		positions = append(positions, sim.Position)
	}

	assert.Equal(t, []string{"alpha-test", "bravo-test", "charlie-test"}, ids)
	assert.Equal(t, []int{0, 1, 2}, positions)
}

func TestStore_AppendSimulations_EmptyBatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSimulations(
		ctx, "run-1", time.Now(), nil,
	))

	// An empty batch must not create a run record.
	_, err := s.GetRun(ctx, "run-1")
	assert.Error(t, err)
}

func TestStore_RunsAreIsolated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()

	require.NoError(t, s.AppendSimulations(ctx, "run-1", now,
		[]pipeline.ArchivedSimulation{
			archived("alpha-test", "/runs/run-1/simulations/alpha-1", 10),
		},
	))
	require.NoError(t, s.AppendSimulations(ctx, "run-2", now.Add(time.Minute),
		[]pipeline.ArchivedSimulation{
			archived("bravo-test", "/runs/run-2/simulations/bravo-1", 20),
		},
	))

	sims, err := s.ListSimulations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, sims, 1)
	assert.Equal(t, "alpha-test", sims[0].SimulationID)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
}
