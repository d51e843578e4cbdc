// Package rundir lays out and locks the output directory of a review run.
//
// Layout:
//
//	<root>/data/state.db
//	<root>/repos/<submission id>/
//	<root>/videos/<submission id>.mp4
//	<root>/reports/{summary.md,flags.md,leaderboard.csv}
//	<root>/reports/projects/<submission id>.md
//	<root>/logs/hackreview.log
//	<root>/.hackreview.lock
package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"hackreview/internal/state"
)

// LockFileName guards a run directory against concurrent runs.
const LockFileName = ".hackreview.lock"

// ErrLocked reports that another process holds the run directory.
var ErrLocked = errors.New("run directory is in use by another hackreview process")

// Dir resolves the paths inside one run directory.
type Dir struct {
	Root string
	lock *flock.Flock
}

// New returns the layout rooted at root without touching the filesystem.
func New(root string) Dir {
	return Dir{Root: filepath.Clean(root)}
}

func (d Dir) DataDir() string     { return filepath.Join(d.Root, "data") }
func (d Dir) ReposDir() string    { return filepath.Join(d.Root, "repos") }
func (d Dir) VideosDir() string   { return filepath.Join(d.Root, "videos") }
func (d Dir) ReportsDir() string  { return filepath.Join(d.Root, "reports") }
func (d Dir) ProjectsDir() string { return filepath.Join(d.ReportsDir(), "projects") }
func (d Dir) LogsDir() string     { return filepath.Join(d.Root, "logs") }
func (d Dir) LockPath() string    { return filepath.Join(d.Root, LockFileName) }

// StatePath is the SQLite database holding the stage records.
func (d Dir) StatePath() string { return filepath.Join(d.DataDir(), state.DatabaseFileName) }

// RepoPath is the clone destination of one submission.
func (d Dir) RepoPath(submissionID string) string {
	return filepath.Join(d.ReposDir(), submissionID)
}

// VideoPath is the download destination of one submission.
func (d Dir) VideoPath(submissionID string) string {
	return filepath.Join(d.VideosDir(), submissionID+".mp4")
}

// ProjectReportPath is the per-project markdown report.
func (d Dir) ProjectReportPath(submissionID string) string {
	return filepath.Join(d.ProjectsDir(), submissionID+".md")
}

// Ensure creates every directory of the layout.
func (d Dir) Ensure() error {
	for _, dir := range []string{d.DataDir(), d.ReposDir(), d.VideosDir(), d.ProjectsDir(), d.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes the exclusive run lock without blocking. The returned Dir
// must be released with Unlock.
func (d Dir) Lock() (Dir, error) {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return d, fmt.Errorf("create run directory: %w", err)
	}
	lock := flock.New(d.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return d, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return d, fmt.Errorf("%w (%s)", ErrLocked, d.LockPath())
	}
	d.lock = lock
	return d, nil
}

// Unlock releases the run lock if it is held.
func (d Dir) Unlock() error {
	if d.lock == nil {
		return nil
	}
	return d.lock.Unlock()
}
