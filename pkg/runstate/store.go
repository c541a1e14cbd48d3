// Package runstate persists the per-run collection of archived
// simulations. The collection is append-only across repeated pipeline
// invocations for the same run.
package runstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/perfops/simarchive/pkg/config"
	"github.com/perfops/simarchive/pkg/pipeline"
)

// Store provides persistence for per-run archive state.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// AppendSimulations merges a batch of newly archived simulations
	// into the run's cumulative record. The first batch for a run
	// creates the record seeded with the batch; later batches append in
	// order. No dedup happens here.
	AppendSimulations(
		ctx context.Context,
		runID string,
		startedAt time.Time,
		sims []pipeline.ArchivedSimulation,
	) error

	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	// ListSimulations returns the run's archived simulations in append
	// order across all invocations.
	ListSimulations(ctx context.Context, runID string) ([]Simulation, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a run-state Store backed by the configured database
// driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "runstate"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening run-state database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&Simulation{},
	); err != nil {
		return fmt.Errorf("running run-state migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Run-state database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// AppendSimulations creates-or-extends the run record in one
// transaction, assigning monotonically increasing positions so append
// order survives across invocations.
func (s *store) AppendSimulations(
	ctx context.Context,
	runID string,
	startedAt time.Time,
	sims []pipeline.ArchivedSimulation,
) error {
	if len(sims) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run := Run{
			RunID:     runID,
			StartedAt: startedAt.UnixMilli(),
		}

		if err := tx.Where("run_id = ?", runID).
			FirstOrCreate(&run).Error; err != nil {
			return fmt.Errorf("creating run record: %w", err)
		}

		var maxPos int
		if err := tx.Model(&Simulation{}).
			Where("run_id = ?", runID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxPos).Error; err != nil {
			return fmt.Errorf("reading max position: %w", err)
		}

		now := time.Now().UTC()

		for i, sim := range sims {
			row, err := newSimulationRow(runID, maxPos+1+i, now, sim)
			if err != nil {
				return err
			}

			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf(
					"inserting simulation %s: %w", sim.SimulationID, err,
				)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("appending simulations for run %s: %w", runID, err)
	}

	s.log.WithFields(logrus.Fields{
		"run":         runID,
		"simulations": len(sims),
	}).Info("Run state updated")

	return nil
}

// newSimulationRow converts one archived simulation into its persisted
// row.
func newSimulationRow(
	runID string, position int, archivedAt time.Time,
	sim pipeline.ArchivedSimulation,
) (*Simulation, error) {
	statsJSON, err := json.Marshal(sim.Stats)
	if err != nil {
		return nil, fmt.Errorf(
			"serializing stats for %s: %w", sim.SimulationID, err,
		)
	}

	row := &Simulation{
		RunID:        runID,
		Position:     position,
		SimulationID: sim.SimulationID,
		Dir:          sim.Dir,
		StatsJSON:    string(statsJSON),
		ArchivedAt:   archivedAt,
	}

	if sim.Stats != nil {
		row.RequestsTotal = int64(sim.Stats.NumberOfRequests.Total)
		row.RequestsOK = int64(sim.Stats.NumberOfRequests.OK)
		row.RequestsKO = int64(sim.Stats.NumberOfRequests.KO)
	}

	return row, nil
}

// GetRun returns the run record for runID.
func (s *store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error; err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}

	return &run, nil
}

// ListRuns returns all run records ordered by start time, newest first.
func (s *store) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// ListSimulations returns the run's simulations in append order.
func (s *store) ListSimulations(
	ctx context.Context, runID string,
) ([]Simulation, error) {
	var sims []Simulation
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("position ASC").
		Find(&sims).Error; err != nil {
		return nil, fmt.Errorf(
			"listing simulations for run %s: %w", runID, err,
		)
	}

	return sims, nil
}
