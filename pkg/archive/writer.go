// Package archive persists selected simulation reports under a
// collision-safe name in the per-run archive.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/perfops/simarchive/pkg/selector"
	"github.com/perfops/simarchive/pkg/workspace"
)

// SimulationsDirName is the directory under the run storage root that
// holds all archived report directories for the run.
const SimulationsDirName = "simulations"

// Writer copies report directories from the workspace into the archive.
type Writer struct {
	log logrus.FieldLogger
	fs  workspace.FS
}

// NewWriter creates a Writer over the given filesystem.
func NewWriter(log logrus.FieldLogger, fsys workspace.FS) *Writer {
	return &Writer{
		log: log.WithField("component", "archive-writer"),
		fs:  fsys,
	}
}

// SimulationID derives the simulation identifier from a report directory
// name by stripping the trailing run-timestamp suffix after the last
// hyphen. A name without a hyphen is its own identifier.
func SimulationID(name string) string {
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		return name[:i]
	}

	return name
}

// EnsureRoot creates the archive root directory. A failure here is fatal
// for the whole pipeline invocation.
func (w *Writer) EnsureRoot(ctx context.Context, root string) error {
	if err := w.fs.MkdirAll(ctx, root); err != nil {
		return fmt.Errorf(
			"creating simulations archive directory %s: %w", root, err,
		)
	}

	return nil
}

// Archive copies the candidate's report tree into root under the
// candidate's original directory name. It returns the archive directory
// on success, skipped=true when the candidate must be excluded without
// failing the invocation, and a non-nil error on a copy failure.
//
// The target directory's existence is the cross-invocation dedup signal,
// so creation is exclusive, and a failed copy removes the partial target
// so a retry will not mistake it for a completed archive.
func (w *Writer) Archive(
	ctx context.Context, cand selector.Candidate, root string,
) (string, bool, error) {
	dest := filepath.Join(root, cand.Name)

	if err := w.fs.MkdirExclusive(ctx, dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			w.log.WithField("dir", dest).
				Info("Simulation archive directory already exists, skipping")

			return "", true, nil
		}

		w.log.WithError(err).WithField("dir", dest).
			Warn("Could not create simulation archive directory, skipping")

		return "", true, nil
	}

	if err := w.fs.CopyDir(ctx, cand.Path, dest); err != nil {
		if rmErr := w.fs.RemoveAll(ctx, dest); rmErr != nil {
			w.log.WithError(rmErr).WithField("dir", dest).
				Warn("Failed to remove partially copied archive directory")
		}

		return "", false, fmt.Errorf("copying report %s: %w", cand.Name, err)
	}

	return dest, false, nil
}
