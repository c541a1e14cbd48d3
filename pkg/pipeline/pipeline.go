// Package pipeline orchestrates one archival invocation: report
// selection, durable copy, and summary-statistics parsing.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/perfops/simarchive/pkg/archive"
	"github.com/perfops/simarchive/pkg/report"
	"github.com/perfops/simarchive/pkg/selector"
)

// ArchivedSimulation is the durable record of one archived report.
// Created once per successfully archived report; immutable thereafter.
type ArchivedSimulation struct {
	// SimulationID is the report directory name with its trailing
	// run-timestamp suffix stripped.
	SimulationID string

	// Stats is the parsed summary-statistics document of the report.
	Stats *report.GlobalStats

	// Dir is the archive directory the report was copied into.
	Dir string
}

// Options parameterize one pipeline invocation.
type Options struct {
	// Enabled is the tri-state simulation tracking flag: nil means the
	// status is unknown, which is reported distinctly from an explicit
	// false.
	Enabled *bool

	// WorkspaceDir is the transient build workspace to scan.
	WorkspaceDir string

	// RunDir is the run's durable storage root. Reports are archived
	// under its "simulations" sub-directory.
	RunDir string

	// RunStart is the run's start time; only reports modified strictly
	// after it are archived.
	RunStart time.Time
}

// Pipeline runs the end-to-end archival flow for one invocation. A run
// may be re-entered: repeated invocations only append reports that have
// not been archived yet.
type Pipeline struct {
	log    logrus.FieldLogger
	sel    *selector.Selector
	writer *archive.Writer
}

// New creates a Pipeline from its collaborators.
func New(
	log logrus.FieldLogger,
	sel *selector.Selector,
	writer *archive.Writer,
) *Pipeline {
	return &Pipeline{
		log:    log.WithField("component", "pipeline"),
		sel:    sel,
		writer: writer,
	}
}

// Run executes one archival invocation and returns the simulations
// archived by it. Only an archive-root creation failure (or a selection
// error) is fatal; every per-candidate failure is logged and isolated.
// The result may be empty even when candidates were processed, if all
// of them were skips or failures.
func (p *Pipeline) Run(
	ctx context.Context, opts Options,
) ([]ArchivedSimulation, error) {
	if opts.Enabled == nil {
		p.log.Warn(
			"Cannot check simulation tracking status, reports won't be archived",
		)
		p.log.Warn(
			"Please make sure simulation tracking is enabled in your build configuration",
		)

		return nil, nil
	}

	if !*opts.Enabled {
		p.log.Info("Simulation tracking disabled, reports were not archived")

		return nil, nil
	}

	p.log.Info("Archiving simulation reports")

	candidates, err := p.sel.Select(ctx, opts.WorkspaceDir, opts.RunStart)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		p.log.Info("No newer simulation reports to archive")

		return nil, nil
	}

	root := filepath.Join(opts.RunDir, archive.SimulationsDirName)
	if err := p.writer.EnsureRoot(ctx, root); err != nil {
		return nil, err
	}

	sims := make([]ArchivedSimulation, 0, len(candidates))

	for _, cand := range candidates {
		dir, skipped, err := p.writer.Archive(ctx, cand, root)
		if err != nil {
			p.log.WithError(err).WithField("report", cand.Name).
				Error("Failed to archive report, skipping")

			continue
		}

		if skipped {
			continue
		}

		stats, err := report.ReadStats(dir)
		if err != nil {
			p.log.WithError(err).WithField("report", cand.Name).
				Error("Failed to parse summary statistics, skipping")

			continue
		}

		sims = append(sims, ArchivedSimulation{
			SimulationID: archive.SimulationID(cand.Name),
			Stats:        stats,
			Dir:          dir,
		})
	}

	return sims, nil
}
