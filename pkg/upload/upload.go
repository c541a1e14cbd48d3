package upload

import "context"

// Uploader mirrors a run's local archive directory to remote storage so
// archived reports survive loss of the archiving host.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and
	// writable. Writes a small test object to fail fast on
	// misconfiguration.
	Preflight(ctx context.Context) error

	// UploadRunDir uploads all files under localDir to the remote
	// store, keyed under the run ID.
	UploadRunDir(ctx context.Context, runID, localDir string) error
}
