package runstate

import "time"

// Run is the persisted archive record of one build run. It is created on
// the first successful archival for the run and lives until the run's
// record is deleted externally.
type Run struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"not null;uniqueIndex"`
	StartedAt int64  // milliseconds since epoch
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Simulation is one archived simulation belonging to a run. Entries are
// append-only: repeated pipeline invocations add rows, never replace or
// remove them. Uniqueness per archive directory is guaranteed upstream
// by the archive writer's directory-existence check; the unique index
// here is a backstop, not the dedup mechanism.
type Simulation struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"not null;index;uniqueIndex:idx_simulations_run_dir"`
	Position     int    `gorm:"not null"`
	SimulationID string `gorm:"not null"`
	Dir          string `gorm:"not null;uniqueIndex:idx_simulations_run_dir"`

	// Denormalized request counts for listing runs without decoding
	// the full stats document.
	RequestsTotal int64
	RequestsOK    int64
	RequestsKO    int64

	// Full parsed summary-statistics document serialized as JSON.
	StatsJSON string `gorm:"type:text"`

	ArchivedAt time.Time
}
