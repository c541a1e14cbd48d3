// Package selector discovers candidate simulation report directories in
// a build workspace and filters them to the ones produced by the
// current run.
package selector

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/perfops/simarchive/pkg/workspace"
)

// Candidate is a directory believed to contain a completed simulation
// report. Candidates are discovered fresh on every invocation and never
// persisted.
type Candidate struct {
	Path    string
	Name    string
	ModTime time.Time
}

// Selector scans a workspace for report directories. It is read-only.
type Selector struct {
	log logrus.FieldLogger
	fs  workspace.FS

	// tolerance widens the run-start cutoff backwards to absorb clock
	// skew between the workspace host and the archiving host. Zero
	// keeps the strict comparison.
	tolerance time.Duration
}

// New creates a Selector over the given filesystem.
func New(
	log logrus.FieldLogger,
	fsys workspace.FS,
	tolerance time.Duration,
) *Selector {
	return &Selector{
		log:       log.WithField("component", "selector"),
		fs:        fsys,
		tolerance: tolerance,
	}
}

// Select returns the report directories under root whose modification
// time is strictly after runStart, sorted by path.
//
// The modification time is the sole signal for "produced by this run".
// If the workspace filesystem's clock disagrees with the caller's, or a
// build re-runs without touching prior reports, this can produce false
// negatives or positives; callers must not rely on sub-second precision.
func (s *Selector) Select(
	ctx context.Context, root string, runStart time.Time,
) ([]Candidate, error) {
	files, err := s.fs.FindStatsFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		s.log.WithField("workspace", root).
			Info("Could not find a report in the workspace")

		return nil, nil
	}

	// The report directory is the grandparent of its stats file. Several
	// stats files can share one report directory, so deduplicate.
	seen := make(map[string]struct{}, len(files))
	dirs := make([]string, 0, len(files))

	for _, f := range files {
		dir := filepath.Dir(filepath.Dir(f))
		if _, ok := seen[dir]; ok {
			continue
		}

		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	sort.Strings(dirs)

	cutoff := runStart.Add(-s.tolerance)
	candidates := make([]Candidate, 0, len(dirs))

	for _, dir := range dirs {
		info, err := s.fs.Stat(ctx, dir)
		if err != nil {
			s.log.WithError(err).WithField("report", dir).
				Warn("Skipping report, could not stat directory")

			continue
		}

		if !info.ModTime().After(cutoff) {
			s.log.WithField("report", filepath.Base(dir)).
				Debug("Skipping report from a previous run")

			continue
		}

		s.log.WithField("report", filepath.Base(dir)).Info("Adding report")

		candidates = append(candidates, Candidate{
			Path:    dir,
			Name:    filepath.Base(dir),
			ModTime: info.ModTime(),
		})
	}

	return candidates, nil
}
