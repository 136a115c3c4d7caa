package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// cancelMarkerPath returns <repo>/.ralf/cancel, the persistent cross-process
// cancel signal a running driver polls at every suspension point.
func cancelMarkerPath(repo string) string {
	return filepath.Join(repo, ".ralf", "cancel")
}

// Cancel sets the persistent cancel marker the active run observes (C12
// cancel()). It is idempotent.
func Cancel(repo string) error {
	if err := os.MkdirAll(filepath.Join(repo, ".ralf"), 0o755); err != nil {
		return fmt.Errorf("ralf: create .ralf: %w", err)
	}
	f, err := os.Create(cancelMarkerPath(repo))
	if err != nil {
		return fmt.Errorf("ralf: write cancel marker: %w", err)
	}
	return f.Close()
}

// ClearCancel removes the cancel marker, called at the start of a new run so
// a marker left by a previous run never cancels this one.
func ClearCancel(repo string) error {
	err := os.Remove(cancelMarkerPath(repo))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ralf: clear cancel marker: %w", err)
	}
	return nil
}

func isCancelled(ctx context.Context, repo string) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	_, err := os.Stat(cancelMarkerPath(repo))
	return err == nil
}
