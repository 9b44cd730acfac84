// Package janitor provides the lock-file primitive used for
// cross-process deployment coordination, a safe directory teardown
// that refuses to delete files held open by peers, and a process-wide
// registry of paths to sweep at exit.
//
// Every operation here reports success as a boolean; janitor calls
// never raise. The caller decides whether a refusal matters.
package janitor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/resdeploy/pkg/locking"
	"github.com/arthur-debert/resdeploy/pkg/logging"
)

// LockFileName is the sentinel file guarding a deployment directory.
const LockFileName = "lockfile.$$$"

var log = logging.GetLogger("janitor")

// LockFilePath returns the path of the lock file inside dir.
func LockFilePath(dir string) string {
	return filepath.Join(dir, LockFileName)
}

func isLockFile(path string) bool {
	return filepath.Base(path) == LockFileName
}

// LockFile is a held directory lock. The advisory exclusive lock on
// the sentinel file stays held until Close, which also deletes the
// sentinel.
type LockFile struct {
	locked *locking.LockedFile
	path   string
}

// TryCreateLockFile attempts to create (or reopen) dir's lock file and
// take a non-blocking exclusive lock on it. Returns nil when the lock
// is held by a peer or cannot be created.
func TryCreateLockFile(dir string) *LockFile {
	path := LockFilePath(dir)
	locked, err := locking.OpenExclusive(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("lock file unavailable")
		return nil
	}
	return &LockFile{locked: locked, path: path}
}

// File returns the open sentinel file, for beacon writes.
func (l *LockFile) File() *os.File {
	return l.locked.File()
}

// Path returns the sentinel file path.
func (l *LockFile) Path() string {
	return l.path
}

// Close releases the lock, closes the sentinel and attempts to delete
// it. Only the first call has effect.
func (l *LockFile) Close() {
	if l == nil || l.locked == nil {
		return
	}
	_ = l.locked.Close()
	l.locked = nil
	tryDelete(l.path)
}

// LockFileExists reports whether dir currently contains a lock file.
func LockFileExists(dir string) bool {
	_, err := os.Stat(LockFilePath(dir))
	return err == nil
}

// LockFileWriteTime returns the lock file's last-modified time, the
// holder's liveness beacon. Returns the zero time when the file cannot
// be inspected.
func LockFileWriteTime(dir string) time.Time {
	info, err := os.Stat(LockFilePath(dir))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// tryOpenForWriteTest probes whether a peer holds path open, by taking
// a non-blocking exclusive lock. The caller must Close the result.
func tryOpenForWriteTest(path string) *locking.LockedFile {
	locked, err := locking.OpenExclusive(path)
	if err != nil {
		return nil
	}
	return locked
}

func tryDelete(path string) bool {
	return os.Remove(path) == nil
}
